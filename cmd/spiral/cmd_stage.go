package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/journal"
	"github.com/kingrea/The-Spiral/internal/orchestrator"
	"github.com/kingrea/The-Spiral/internal/pipeline"
	"github.com/kingrea/The-Spiral/internal/stage"
)

func stageNames() []string {
	return append([]string(nil), config.Stages...)
}

func newStageCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "stage <name>",
		Short:     "Run one stage loop in this process",
		Long:      "Run one stage loop until interrupted. Stages: " + strings.Join(stageNames(), ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withStage(opts, args[0], func(r *stage.Runner) error {
				err := r.Run(ctx)
				if errors.Is(err, stage.ErrStop) {
					return nil
				}
				return err
			})
		},
	}
}

func newPulseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "pulse <name>",
		Short:     "Run a single pulse of one stage",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStage(opts, args[0], func(r *stage.Runner) error {
				return r.PulseOnce(cmd.Context())
			})
		},
	}
}

// withStage builds the named stage with its logger and ledger and hands its
// runner to fn. The orchestrator runs without a supervisor here.
func withStage(opts *globalOptions, name string, fn func(*stage.Runner) error) error {
	store, params, err := opts.loadStore()
	if err != nil {
		return err
	}
	logger, logCloser, err := opts.logger(name, params)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser)

	var s stage.Stage
	if name == config.StageOrchestrator {
		j, err := journal.New(params.Paths.Journal)
		if err != nil {
			return err
		}
		s = orchestrator.New(store, orchestrator.WithJournal(j))
	} else {
		book, closeLedger := openLedger(params, logger)
		defer closeLedger()
		s, err = pipeline.Builtins().Resolve(name, stage.Env{Ledger: book})
		if errors.Is(err, stage.ErrUnknown) {
			return fmt.Errorf("%w (known: %s)", err, strings.Join(stageNames(), ", "))
		}
		if err != nil {
			return err
		}
	}
	if err := fn(stage.NewRunner(s, store, logger)); err != nil {
		return stageError(name, err)
	}
	return nil
}
