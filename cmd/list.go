package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/ports"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List issues",
	Example: "  ctt list\n  ctt list -vv\n  ctt list -s closed -v",
	Args:    cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawStatus, _ := cmd.Flags().GetString("status")
		verbose, _ := cmd.Flags().GetCount("verbose")

		status, err := parseListStatus(rawStatus)
		if err != nil {
			return err
		}

		issues, err := app.Tracker.ListIssues(ctx, status)
		if err != nil {
			return errs.Wrap(err, "list issues")
		}

		siblings := make(map[uint64][]ports.Sibling)
		for _, issue := range issues {
			if issue.IssueType != domainctt.TypeHardwareWithSiblings {
				continue
			}
			rows, err := app.Tracker.ListSiblings(ctx, issue.ID, issue.Status)
			if err != nil {
				return errs.Wrapf(err, "list siblings of %d", issue.ID)
			}
			siblings[issue.ID] = rows
		}

		out := cmd.OutOrStdout()
		return renderIssueList(out, issues, siblings, verbose, newStyles(isTerminal(out)))
	}),
}

func parseListStatus(raw string) (domainctt.Status, error) {
	switch status := domainctt.Status(strings.ToLower(strings.TrimSpace(raw))); status {
	case "all":
		return "", nil
	case domainctt.StatusOpen, domainctt.StatusClosed, domainctt.StatusDeleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q (want open, closed, deleted or all)", raw)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("status", "s", "open", "Status to list: open, closed, deleted or all")
	listCmd.Flags().CountP("verbose", "v", "More columns; -vv adds the full title and description")
}
