package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/logging"
)

type globalOptions struct {
	paramsPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "spiral",
		Short:         "Self-adjusting script lifecycle pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.paramsPath, "params", config.DefaultFileName, "path to the parameter store")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "stderr log format: text or json")

	root.AddCommand(
		newInitCmd(opts),
		newRunCmd(opts),
		newStageCmd(opts),
		newPulseCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// loadStore opens the parameter store and returns its first snapshot with
// every partition directory created.
func (o *globalOptions) loadStore() (*config.Store, config.Params, error) {
	store, err := config.NewStore(o.paramsPath)
	if err != nil {
		return nil, config.Params{}, err
	}
	params, err := store.Load()
	if err != nil {
		return nil, config.Params{}, err
	}
	if err := config.EnsureDirs(params); err != nil {
		return nil, config.Params{}, err
	}
	return store, params, nil
}

func (o *globalOptions) logger(service string, p config.Params) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:   o.logLevel,
		Format:  o.logFormat,
		LogDir:  p.Paths.LogDir,
		Service: service,
	})
}

// openLedger opens the lifecycle ledger. Badger allows one process per
// directory, so a second process falls back to not recording.
func openLedger(p config.Params, logger *slog.Logger) (ledger.Recorder, func()) {
	book, err := ledger.Open(ledger.Options{Dir: p.Paths.Ledger, Logger: logger})
	if err != nil {
		logger.Warn("lifecycle ledger unavailable, history will not be recorded", "error", err)
		return ledger.Discard, func() {}
	}
	return book, func() {
		if err := book.Close(); err != nil {
			logger.Warn("closing ledger", "error", err)
		}
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func stageError(name string, err error) error {
	return fmt.Errorf("stage %s: %w", name, err)
}
