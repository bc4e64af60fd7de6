package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger",
	Long:  "Commands for listing and viewing recorded runs. Requires store.driver.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its stage history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		events, err := st.ListStageEvents(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runDetail{Run: *run, Events: events})
		}
		formatRunDetail(os.Stdout, run, events)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (running, done, aborted)")
	runsListCmd.Flags().Int("limit", 20, "max runs to list")
	runsShowCmd.Flags().Bool("json", false, "print as JSON")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTAGE\tCREATED\tQUERY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.Stage, r.CreatedAt.Format(time.DateTime), truncate(r.Query, 60))
	}
	_ = tw.Flush()
}

func formatRunDetail(w io.Writer, run *model.Run, events []model.StageEvent) {
	fmt.Fprintf(w, "Run:     %s\n", run.ID)
	fmt.Fprintf(w, "Query:   %s\n", run.Query)
	fmt.Fprintf(w, "Status:  %s (%s)\n", run.Status, run.Stage)
	if res := run.Result; res != nil {
		fmt.Fprintf(w, "Source:  %s\n", res.CandidateURL)
		fmt.Fprintf(w, "Tokens:  %d in / %d out ($%.4f)\n",
			res.Usage.InputTokens, res.Usage.OutputTokens, res.EstimatedCostUSD)
		fmt.Fprintf(w, "Elapsed: %s\n", time.Duration(res.DurationMS)*time.Millisecond)
	}

	if len(events) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STAGE\tATTEMPT\tOUTCOME\tCANDIDATE")
		for _, ev := range events {
			outcome := "ok"
			if ev.Error != nil {
				outcome = fmt.Sprintf("%s: %s", ev.Error.Kind, truncate(ev.Error.Message, 60))
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ev.Stage, ev.Attempt, outcome, ev.Candidate)
		}
		_ = tw.Flush()
	}

	if run.Result != nil && run.Result.FinalAnswer != "" {
		fmt.Fprintf(w, "\n%s\n", run.Result.FinalAnswer)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
