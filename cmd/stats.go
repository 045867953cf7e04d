package cmd

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/usecase/reconcile"
	"ctt/internal/usecase/tracker"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print issue counts as CSV",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		stats, err := app.Tracker.Stats(ctx)
		if err != nil {
			return errs.Wrap(err, "collect stats")
		}
		last, found, err := reconcile.LastRun(ctx, app.Cache)
		if err != nil {
			logging.Warn(ctx, "last auto pass unreadable", slog.Any("err", errs.Loggable(err)))
			found = false
		}

		w := csv.NewWriter(cmd.OutOrStdout())
		if err := w.WriteAll(statsRecords(stats, last, found)); err != nil {
			return errs.Wrap(err, "write stats csv")
		}
		return nil
	}),
}

// statsRecords lays the counts out as metric,key,value rows.
func statsRecords(stats tracker.Stats, last reconcile.Report, haveLast bool) [][]string {
	rows := [][]string{
		{"metric", "key", "value"},
		{"issues", "total", fmt.Sprint(stats.Total)},
	}
	for _, status := range []domainctt.Status{domainctt.StatusOpen, domainctt.StatusClosed, domainctt.StatusDeleted} {
		rows = append(rows, []string{"status", string(status), fmt.Sprint(stats.ByStatus[status])})
	}

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, string(t))
	}
	slices.Sort(types)
	for _, t := range types {
		rows = append(rows, []string{"open_type", t, fmt.Sprint(stats.ByType[domainctt.IssueType(t)])})
	}
	for sev := 1; sev <= 4; sev++ {
		rows = append(rows, []string{"open_severity", fmt.Sprint(sev), fmt.Sprint(stats.BySeverity[sev])})
	}

	if !haveLast {
		return rows
	}
	result := "ok"
	if last.Error != "" {
		result = "failed"
	}
	created := make([]string, 0, len(last.Created))
	for _, id := range last.Created {
		created = append(created, fmt.Sprint(id))
	}
	return append(rows,
		[]string{"last_auto", "run_id", last.RunID},
		[]string{"last_auto", "started_at", last.StartedAt},
		[]string{"last_auto", "result", result},
		[]string{"last_auto", "records", fmt.Sprint(last.Records)},
		[]string{"last_auto", "created", strings.Join(created, " ")},
		[]string{"last_auto", "updated", fmt.Sprint(last.Updated)},
		[]string{"last_auto", "forced", strings.Join(last.Forced, " ")},
	)
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
