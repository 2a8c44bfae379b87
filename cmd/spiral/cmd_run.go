package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/The-Spiral/internal/api"
	"github.com/kingrea/The-Spiral/internal/journal"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/orchestrator"
	"github.com/kingrea/The-Spiral/internal/pipeline"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/supervisor"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage and the orchestrator in this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAll(ctx, opts, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve the status API on this address (e.g. "+api.DefaultAddr+")")
	return cmd
}

func runAll(ctx context.Context, opts *globalOptions, listen string) error {
	store, params, err := opts.loadStore()
	if err != nil {
		return err
	}
	logger, logCloser, err := opts.logger("spiral", params)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser)

	book, closeLedger := openLedger(params, logger)
	defer closeLedger()
	j, err := journal.New(params.Paths.Journal)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	sup := supervisor.New(gctx, logger)
	defer sup.Stop()
	env := stage.Env{Ledger: book}
	if err := pipeline.Supervise(sup, pipeline.Builtins(), env, store, logger); err != nil {
		return err
	}

	orch := orchestrator.New(store, orchestrator.WithSupervisor(sup), orchestrator.WithJournal(j))
	g.Go(func() error {
		return stage.NewRunner(orch, store, logger).Run(gctx)
	})
	if listen != "" {
		serverOpts := []api.Option{api.WithLiveness(sup), api.WithLogger(logger)}
		if l, ok := book.(*ledger.Ledger); ok {
			serverOpts = append(serverOpts, api.WithHistory(l))
		}
		g.Go(func() error {
			return api.NewServer(store, serverOpts...).Run(gctx, listen)
		})
	}

	logger.Info("spiral running", "params", store.Path(), "stages", sup.Names(), "generation", params.Generation)
	err = g.Wait()
	if errors.Is(err, stage.ErrStop) {
		logger.Info("run finished", "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("run interrupted")
	return nil
}
