package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/usecase/tracker"
)

var openCmd = &cobra.Command{
	Use:   "open TITLE DESCRIPTION -n NODES",
	Short: "Open an issue and drain its nodes",
	Example: `  ctt open "Persistent memory errors" "Open an HPE ticket for P2-DIMM1G" -n r1i1n1
  ctt open "Will not boot" "Find out why this node will not boot" -n r1i1n1 -a casg -s 1`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}

		nodes, _ := cmd.Flags().GetString("node")
		severity, _ := cmd.Flags().GetInt("severity")
		cluster, _ := cmd.Flags().GetString("cluster")
		assign, _ := cmd.Flags().GetString("assign")
		ticket, _ := cmd.Flags().GetString("ticket")
		issueType, _ := cmd.Flags().GetString("type")

		issue, err := app.Tracker.OpenIssue(ctx, tracker.OpenIssueInput{
			Title:       args[0],
			Description: args[1],
			Hostname:    nodes,
			Severity:    severity,
			Tickets:     ticket,
			AssignedTo:  assign,
			IssueType:   domainctt.IssueType(issueType),
			Cluster:     cluster,
			Actor:       actor,
		})
		if err != nil {
			return errs.Wrap(err, "open issue")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "opened issue %d for %s\n", issue.ID, issue.Hostname); err != nil {
			return errs.Wrap(err, "write open output")
		}
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update IDS",
	Short: "Change fields of one or more issues",
	Example: `  ctt update 1039 -s 1 -c cheyenne -n r1i1n1 -t 689725 -a casg -i "New title" -d "New description"
  ctt update 1092,1093 -x h!`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		ids, err := parseIssueIDs(args[0])
		if err != nil {
			return err
		}

		var fields tracker.UpdateFields
		flags := cmd.Flags()
		if flags.Changed("severity") {
			v, _ := flags.GetInt("severity")
			fields.Severity = &v
		}
		stringField := func(name string) *string {
			if !flags.Changed(name) {
				return nil
			}
			v, _ := flags.GetString(name)
			return &v
		}
		fields.Cluster = stringField("cluster")
		fields.Hostname = stringField("node")
		fields.Ticket = stringField("ticket")
		fields.AssignedTo = stringField("assign")
		fields.Title = stringField("title")
		fields.Description = stringField("description")
		if v := stringField("type"); v != nil {
			t := domainctt.IssueType(*v)
			fields.IssueType = &t
		}

		if err := app.Tracker.UpdateIssue(ctx, ids, fields, actor); err != nil {
			return errs.Wrap(err, "update issues")
		}
		return printf(cmd, "updated %s\n", joinIDs(ids))
	}),
}

var commentCmd = &cobra.Command{
	Use:     "comment IDS TEXT",
	Short:   "Add a comment to one or more issues",
	Example: `  ctt comment 1008 "Need an update on this issue"`,
	Args:    cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		return eachIssue(args[0], func(id uint64) error {
			if err := app.Tracker.CommentIssue(ctx, id, args[1], actor); err != nil {
				return err
			}
			return printf(cmd, "commented on %d\n", id)
		})
	}),
}

var closeCmd = &cobra.Command{
	Use:     "close IDS TEXT",
	Short:   "Close issues and resume nodes nothing else holds",
	Example: `  ctt close 1082 "Issue resolved after reseat"`,
	Args:    cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		return eachIssue(args[0], func(id uint64) error {
			resumed, err := app.Tracker.CloseIssue(ctx, id, args[1], actor)
			if err != nil {
				return err
			}
			if len(resumed) == 0 {
				return printf(cmd, "closed %d\n", id)
			}
			return printf(cmd, "closed %d, resumed %s\n", id, strings.Join(resumed, ","))
		})
	}),
}

var reopenCmd = &cobra.Command{
	Use:     "reopen IDS TEXT",
	Short:   "Reopen closed issues",
	Example: `  ctt reopen 1042 "Still seeing memory failures"`,
	Args:    cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		return eachIssue(args[0], func(id uint64) error {
			if err := app.Tracker.ReopenIssue(ctx, id, args[1], actor); err != nil {
				return err
			}
			return printf(cmd, "reopened %d\n", id)
		})
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete IDS",
	Short: "Mark issues deleted without touching PBS",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		return eachIssue(args[0], func(id uint64) error {
			if err := app.Tracker.DeleteIssue(ctx, id, actor); err != nil {
				return err
			}
			return printf(cmd, "deleted %d\n", id)
		})
	}),
}

var assignCmd = &cobra.Command{
	Use:   "assign IDS GROUP",
	Short: "Assign issues to a group",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		return eachIssue(args[0], func(id uint64) error {
			if err := app.Tracker.AssignIssue(ctx, id, args[1], actor); err != nil {
				return err
			}
			return printf(cmd, "assigned %d to %s\n", id, strings.ToLower(args[1]))
		})
	}),
}

var siblingsCmd = &cobra.Command{
	Use:   "siblings ID",
	Short: "Attach the blade siblings of an issue's node and drain them",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		id, err := domainctt.ParseIssueID(args[0])
		if err != nil {
			return err
		}
		added, err := app.Tracker.AttachSiblings(ctx, id, actor)
		if err != nil {
			return errs.Wrap(err, "attach siblings")
		}
		if len(added) == 0 {
			return printf(cmd, "no new siblings for %d\n", id)
		}
		return printf(cmd, "attached %s to %d\n", strings.Join(added, ","), id)
	}),
}

var attachCmd = &cobra.Command{
	Use:     "attach ID FILE",
	Short:   "Copy a file into the issue's attachment directory",
	Example: `  ctt attach 1098 /ssg/tmp/output.log`,
	Args:    cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := currentActor(app)
		if err != nil {
			return err
		}
		id, err := domainctt.ParseIssueID(args[0])
		if err != nil {
			return err
		}
		dest, err := app.Tracker.AttachFile(ctx, id, args[1], actor)
		if err != nil {
			return errs.Wrap(err, "attach file")
		}
		return printf(cmd, "attached %s\n", dest)
	}),
}

func init() {
	rootCmd.AddCommand(openCmd, updateCmd, commentCmd, closeCmd, reopenCmd, deleteCmd, assignCmd, siblingsCmd, attachCmd)

	openCmd.Flags().StringP("node", "n", "", "Node name, or a comma separated list sharing the issue")
	openCmd.Flags().IntP("severity", "s", 0, "Severity 1-4 (default from config)")
	openCmd.Flags().StringP("cluster", "c", "", "Cluster name (default from config)")
	openCmd.Flags().StringP("assign", "a", "", "Group to assign the issue to")
	openCmd.Flags().StringP("ticket", "t", "", "External ticket number")
	openCmd.Flags().StringP("type", "x", "", "Issue type: h, s, t, u, o")
	_ = openCmd.MarkFlagRequired("node")

	updateCmd.Flags().IntP("severity", "s", 0, "Severity 1-4")
	updateCmd.Flags().StringP("cluster", "c", "", "Cluster name")
	updateCmd.Flags().StringP("node", "n", "", "Node name; PBS is not touched for old or new nodes")
	updateCmd.Flags().StringP("ticket", "t", "", "Add the ticket, or remove it when already listed")
	updateCmd.Flags().StringP("assign", "a", "", "Group to assign the issue to")
	updateCmd.Flags().StringP("title", "i", "", "Issue title")
	updateCmd.Flags().StringP("description", "d", "", "Issue description")
	updateCmd.Flags().StringP("type", "x", "", "Issue type: h!, h, s, t, u, o (h! attaches siblings)")
}

func parseIssueIDs(raw string) ([]uint64, error) {
	ids, err := domainctt.ParseIssueIDs(raw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", domainctt.ErrInvalidIssueID, raw)
	}
	return ids, nil
}

// eachIssue runs fn for every id in a comma separated list and keeps going past
// failures; all of them are returned together.
func eachIssue(raw string, fn func(id uint64) error) error {
	ids, err := parseIssueIDs(raw)
	if err != nil {
		return err
	}
	var failed []error
	for _, id := range ids {
		if err := fn(id); err != nil {
			failed = append(failed, errs.Wrapf(err, "issue %d", id))
		}
	}
	return errors.Join(failed...)
}

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ",")
}

func printf(cmd *cobra.Command, format string, args ...any) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}
