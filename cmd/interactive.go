package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/data-agent/internal/pipeline"
)

const interactivePrompt = "\nQuestion (quit to exit): "

var exitWords = map[string]bool{"quit": true, "exit": true, "q": true}

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"repl"},
	Short:   "Answer questions typed at a prompt until quit",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		return runInteractive(ctx, os.Stdin, os.Stdout, env.Controller, env.Options)
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// runInteractive reads one question per line from in and answers each in
// turn until an exit word or end of input. Cancelling ctx also ends the
// loop. Aborted runs print their partial answer and the loop continues.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, r runner, opts pipeline.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	answered := 0
	for {
		fmt.Fprint(out, interactivePrompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			zap.L().Info("interactive: interrupted", zap.Int("answered", answered))
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				if err := <-scanErr; err != nil {
					return eris.Wrap(err, "read question")
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		res := r.Run(ctx, line, opts)
		answered++
		fmt.Fprintln(out)
		if err := writeAskResult(out, res, false); err != nil {
			zap.L().Warn("interactive: run aborted", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
}
