package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/metrics"
)

// Runner drives one stage's pulse loop.
type Runner struct {
	stage  Stage
	loader Loader
	logger *slog.Logger
}

// NewRunner binds a stage to its parameter source.
func NewRunner(s Stage, loader Loader, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{stage: s, loader: loader, logger: logger.With("stage", s.Name())}
}

// Run loops until ctx is cancelled or a pulse asks to stop. A parameter store
// that cannot be decoded at startup is fatal; later reload failures keep the
// previous snapshot.
func (r *Runner) Run(ctx context.Context) error {
	name := r.stage.Name()
	ctx = ctxlog.WithLogger(ctx, r.logger)

	params, err := r.loader.Load()
	if err != nil {
		r.logger.Error("cannot load parameters", "error", err)
		return fmt.Errorf("stage %s: load parameters: %w", name, err)
	}
	r.logger.Info("stage started", "interval", params.Interval(name))

	for first := true; ; first = false {
		if !first {
			if fresh, err := r.loader.Load(); err != nil {
				r.logger.Warn("parameter reload failed, keeping previous snapshot", "error", err)
			} else {
				params = fresh
			}
		}
		if err := r.pulse(ctx, params); err != nil {
			if errors.Is(err, ErrStop) {
				r.logger.Info("stage stopping", "reason", err)
				return err
			}
			r.logger.Error("pulse failed", "error", err)
		}

		timer := time.NewTimer(params.Interval(name))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("stage stopped")
			return nil
		case <-timer.C:
		}
	}
}

// PulseOnce loads a snapshot and runs a single pulse.
func (r *Runner) PulseOnce(ctx context.Context) error {
	params, err := r.loader.Load()
	if err != nil {
		return fmt.Errorf("stage %s: load parameters: %w", r.stage.Name(), err)
	}
	return r.pulse(ctxlog.WithLogger(ctx, r.logger), params)
}

func (r *Runner) pulse(ctx context.Context, params config.Params) error {
	if err := ctx.Err(); err != nil {
		return nil
	}
	start := time.Now()
	err := r.stage.Pulse(ctx, params)
	metrics.ObservePulse(r.stage.Name(), time.Since(start), err)
	return err
}
