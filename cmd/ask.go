package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
)

var (
	askJSON    bool
	askSheet   string
	askBudget  int
	askRetries int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single data question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		opts, err := applyAskFlags(cmd, env.Options)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		res := env.Controller.Run(ctx, query, opts)
		return writeAskResult(os.Stdout, res, askJSON)
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full run result as JSON")
	askCmd.Flags().StringVar(&askSheet, "sheet", "", "spreadsheet sheet to analyze (default from config)")
	askCmd.Flags().IntVar(&askBudget, "budget", 0, "data byte budget (default from config)")
	askCmd.Flags().IntVar(&askRetries, "max-stage-retries", -1, "retries per stage (default from config)")
	rootCmd.AddCommand(askCmd)
}

// applyAskFlags overrides configured options with flags the user set and
// rejects values outside the run bounds.
func applyAskFlags(cmd *cobra.Command, opts pipeline.Options) (pipeline.Options, error) {
	if cmd.Flags().Changed("sheet") {
		opts.Sheet = askSheet
	}
	if cmd.Flags().Changed("budget") {
		opts.DataByteBudget = askBudget
	}
	if cmd.Flags().Changed("max-stage-retries") {
		opts.MaxStageRetries = askRetries
	}
	if err := opts.Validate(); err != nil {
		return opts, eris.Wrap(err, "ask flags")
	}
	return opts, nil
}

// writeAskResult prints res and returns an error when the run aborted so the
// process exits non-zero.
func writeAskResult(w io.Writer, res *model.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encode result")
		}
	} else {
		fmt.Fprintln(w, res.FinalAnswer)
		if res.CandidateURL != "" {
			fmt.Fprintf(w, "\nSource: %s\n", res.CandidateURL)
		}
	}

	if !res.Succeeded() {
		return eris.Errorf("run %s aborted after %s", res.RunID, res.LastStage)
	}
	return nil
}
