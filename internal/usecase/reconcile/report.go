package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"ctt/internal/bootstrap/logging"
	"ctt/internal/errs"
	"ctt/internal/ports"
)

// KeyLastRun is the KV key holding the JSON report of the latest pass.
const KeyLastRun = "auto:last_run"

// Report summarizes one automatic pass.
type Report struct {
	RunID     string   `json:"run_id"`
	StartedAt string   `json:"started_at"`
	Records   int      `json:"records"`
	Created   []uint64 `json:"created,omitempty"`
	Updated   int      `json:"updated"`
	Forced    []string `json:"forced,omitempty"`
	Sentinel  uint64   `json:"sentinel,omitempty"`
	Error     string   `json:"error,omitempty"`

	createdNodes []string
}

// finish stores the report and publishes metrics. Both are best effort.
func (e *Engine) finish(ctx context.Context, report Report) {
	if e.cache != nil {
		raw, err := json.Marshal(report)
		if err == nil {
			err = e.cache.Set(ctx, KeyLastRun, string(raw), 0)
		}
		if err != nil {
			logging.Warn(ctx, "store auto pass report failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	if err := e.metrics.Flush(); err != nil {
		logging.Warn(ctx, "flush metrics failed", slog.Any("err", errs.Loggable(err)))
	}
}

// LastRun reads the report stored by the previous pass.
func LastRun(ctx context.Context, cache ports.Cache) (Report, bool, error) {
	raw, found, err := cache.Get(ctx, KeyLastRun)
	if err != nil || !found {
		return Report{}, found, err
	}
	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return Report{}, false, errs.Wrap(err, "decode last auto run")
	}
	return report, true, nil
}

// ClearLastRun forgets the stored report so stats shows no previous pass.
func ClearLastRun(ctx context.Context, cache ports.Cache) error {
	return errs.Wrap(cache.Delete(ctx, KeyLastRun), "clear last auto run")
}
