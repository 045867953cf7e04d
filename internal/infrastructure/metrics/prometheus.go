package metrics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"ctt/internal/errs"
	"ctt/internal/ports"
)

// Recorder collects reconciliation metrics in a private registry and writes them
// to a node-exporter textfile on Flush.
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	records       prometheus.Gauge
	openIssues    prometheus.Gauge
	issuesCreated *prometheus.CounterVec
	stateChanges  prometheus.Counter
	forced        *prometheus.CounterVec
	passes        *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	passDuration  prometheus.Gauge
}

var _ ports.Metrics = (*Recorder)(nil)

func NewRecorder(cluster string, textfile string) *Recorder {
	labels := prometheus.Labels{"cluster": cluster}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: strings.TrimSpace(textfile),

		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ctt_auto_node_records",
			Help:        "Node records returned by the scheduler in the last pass",
			ConstLabels: labels,
		}),
		openIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ctt_open_issues",
			Help:        "Open issues seen at the start of the last pass",
			ConstLabels: labels,
		}),
		issuesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ctt_auto_issues_created_total",
			Help:        "Issues opened by the automatic pass by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ctt_auto_state_changes_total",
			Help:        "Open issues whose node state changed",
			ConstLabels: labels,
		}),
		forced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ctt_auto_forced_offline_total",
			Help:        "Nodes drained again because PBS no longer had them offline",
			ConstLabels: labels,
		}, []string{"kind"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ctt_auto_passes_total",
			Help:        "Automatic passes by result",
			ConstLabels: labels,
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ctt_auto_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful pass",
			ConstLabels: labels,
		}),
		passDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ctt_auto_last_duration_seconds",
			Help:        "Duration of the last successful pass",
			ConstLabels: labels,
		}),
	}

	r.registry.MustRegister(
		r.records,
		r.openIssues,
		r.issuesCreated,
		r.stateChanges,
		r.forced,
		r.passes,
		r.lastSuccess,
		r.passDuration,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveRecords(n int) {
	r.records.Set(float64(n))
}

func (r *Recorder) ObserveOpenIssues(n int64) {
	r.openIssues.Set(float64(n))
}

func (r *Recorder) IssueCreated(reason string) {
	r.issuesCreated.WithLabelValues(reason).Inc()
}

func (r *Recorder) StateChanged() {
	r.stateChanges.Inc()
}

func (r *Recorder) ForcedOffline(kind string) {
	r.forced.WithLabelValues(kind).Inc()
}

func (r *Recorder) PassFailed(reason string) {
	r.passes.WithLabelValues("failed_" + reason).Inc()
}

func (r *Recorder) PassCompleted(durationSeconds float64) {
	r.passes.WithLabelValues("ok").Inc()
	r.passDuration.Set(durationSeconds)
	r.lastSuccess.SetToCurrentTime()
}

// Flush writes the registry to the configured textfile. It does nothing when no
// textfile is configured.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0o755); err != nil {
		return errs.Wrapf(err, "create metrics directory for %q", r.textfile)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return errs.Wrapf(err, "write metrics textfile %q", r.textfile)
	}
	return nil
}
