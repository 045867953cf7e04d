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
)

var showCmd = &cobra.Command{
	Use:     "show ID",
	Short:   "Show an issue and mark it seen by your group",
	Example: "  ctt show 1045\n  ctt show 1031 -d -o yaml",
	Args:    cobra.ExactArgs(1),
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
		withHistory, _ := cmd.Flags().GetBool("detail")
		output, _ := cmd.Flags().GetString("output")

		detail, err := app.Tracker.GetIssue(ctx, id)
		if err != nil {
			return errs.Wrap(err, "get issue")
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(output) {
		case "", "text":
			err = renderIssueText(out, detail, withHistory, newStyles(isTerminal(out)))
		case "yaml":
			err = renderIssueYAML(out, detail, withHistory)
		default:
			return fmt.Errorf("unknown output format %q (want text or yaml)", output)
		}
		if err != nil {
			return err
		}

		if err := app.Tracker.AcknowledgeIssue(ctx, id, actor.Group); err != nil {
			return errs.Wrap(err, "acknowledge issue")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolP("detail", "d", false, "Include the issue history")
	showCmd.Flags().StringP("output", "o", "text", "Output format: text or yaml")
}
