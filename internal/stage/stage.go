// Package stage defines the contract every pipeline participant follows: an
// independently scheduled loop that reloads the parameter store, pulses once
// over its partitions, then sleeps for its configured interval.
package stage

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/metrics"
	"github.com/kingrea/The-Spiral/internal/partition"
)

// ErrStop asks the runner to end the loop. Wrap it to give a reason.
var ErrStop = errors.New("stage: stop requested")

// Stage performs one pulse against a parameter snapshot. Per-artifact failures
// are handled inside Pulse; a returned error is logged and the loop continues
// unless it wraps ErrStop.
type Stage interface {
	Name() string
	Pulse(ctx context.Context, p config.Params) error
}

// Loader produces a fresh parameter snapshot.
type Loader interface {
	Load() (config.Params, error)
}

// Rand is the randomness stages draw from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Env carries the collaborators shared by every stage.
type Env struct {
	Ledger ledger.Recorder
	Rand   Rand
	Now    func() time.Time
}

// WithDefaults fills unset collaborators.
func (e Env) WithDefaults() Env {
	if e.Ledger == nil {
		e.Ledger = ledger.Discard
	}
	if e.Rand == nil {
		e.Rand = globalRand{}
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// Record notes a lifecycle action in the ledger and metrics. Ledger failures
// are logged and otherwise ignored.
func (e Env) Record(ctx context.Context, ev ledger.Event) {
	if ev.At.IsZero() && e.Now != nil {
		ev.At = e.Now().UTC()
	}
	metrics.CountAction(ev.Stage, string(ev.Action))
	if e.Ledger == nil {
		return
	}
	if err := e.Ledger.Record(ev); err != nil {
		ctxlog.FromContext(ctx).Warn("ledger write failed", "artifact", ev.Artifact, "action", ev.Action, "error", err)
	}
}

// LogFailure reports a per-artifact failure. Artifacts that vanished under a
// concurrent stage are routine and logged at debug.
func LogFailure(logger *slog.Logger, msg string, err error) {
	if errors.Is(err, partition.ErrVanished) {
		logger.Debug(msg, "error", err)
		return
	}
	logger.Error(msg, "error", err)
}
