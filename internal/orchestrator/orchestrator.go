// Package orchestrator closes the control loop: it keeps the other stages
// alive, advances the generation counter, and feeds the latest experiment
// result back into the complexity bias. It is the parameter store's only
// writer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/journal"
	"github.com/kingrea/The-Spiral/internal/metrics"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/supervisor"
)

// ErrGenerationLimit ends the run once max_generations is reached.
var ErrGenerationLimit = fmt.Errorf("orchestrator: generation limit reached: %w", stage.ErrStop)

// Supervisor is the liveness interface the orchestrator drives.
type Supervisor interface {
	Names() []string
	Alive(name string) bool
	Start(name string) error
	Reap() []supervisor.Exit
}

// Saver persists a parameter snapshot.
type Saver interface {
	Save(config.Params) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSupervisor lets the orchestrator restart exited stages.
func WithSupervisor(s Supervisor) Option {
	return func(o *Orchestrator) { o.supervisor = s }
}

// WithJournal appends one line per pulse to j.
func WithJournal(j *journal.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator is the control-loop stage.
type Orchestrator struct {
	store      Saver
	supervisor Supervisor
	journal    *journal.Journal
	now        func() time.Time
}

// New builds an orchestrator writing through store.
func New(store Saver, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Name() string { return config.StageOrchestrator }

// Pulse runs one generation.
func (o *Orchestrator) Pulse(ctx context.Context, p config.Params) error {
	logger := ctxlog.FromContext(ctx)
	if p.MaxGenerations > 0 && p.Generation >= p.MaxGenerations {
		return fmt.Errorf("%w after generation %d", ErrGenerationLimit, p.Generation)
	}

	o.supervise(ctx)

	p.Generation++
	if p.AdaptiveScaling {
		p = Scale(p)
	}
	if err := o.store.Save(p); err != nil {
		return fmt.Errorf("orchestrator: persist generation: %w", err)
	}
	logger.Info("generation advanced", "generation", p.Generation, "bias", p.ComplexityBias)

	entry := journal.Entry{At: o.now(), Generation: p.Generation}
	result, name, err := records.LatestResult(p.Paths.Results)
	switch {
	case errors.Is(err, records.ErrNoRecords):
		logger.Debug("no experiment results yet")
	case err != nil:
		logger.Warn("cannot read latest experiment", "error", err)
	case name == p.LastExperiment:
		logger.Debug("no new experiment since last pulse", "experiment", name)
	default:
		before := p.ComplexityBias
		p.ComplexityBias = AdjustBias(p, result.Status)
		p.LastExperiment = name
		if err := o.store.Save(p); err != nil {
			return fmt.Errorf("orchestrator: persist feedback: %w", err)
		}
		entry.Feedback = string(result.Status)
		entry.Experiment = name
		logger.Info("feedback applied",
			"experiment", name, "artifact", result.Artifact, "status", result.Status,
			"bias_before", before, "bias", p.ComplexityBias)
	}

	if event, chaosName, err := records.LatestChaos(p.Paths.ChaosLog); err == nil {
		entry.Chaos = string(event.Kind)
		logger.Debug("latest chaos noted", "event", chaosName, "kind", event.Kind, "target", event.Target)
	} else if !errors.Is(err, records.ErrNoRecords) {
		logger.Warn("cannot read latest chaos event", "error", err)
	}

	entry.Bias = p.ComplexityBias
	if err := o.journal.Append(entry); err != nil {
		logger.Warn("journal append failed", "error", err)
	}
	publish(p)
	return nil
}

// supervise reaps exited stages and starts every registered stage that is not
// running.
func (o *Orchestrator) supervise(ctx context.Context) {
	if o.supervisor == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	for _, exit := range o.supervisor.Reap() {
		logger.Warn("stage exited", "stage", exit.Name, "attempt", exit.Attempts, "panicked", exit.Panicked, "error", exit.Err)
	}
	for _, name := range o.supervisor.Names() {
		if o.supervisor.Alive(name) {
			continue
		}
		if err := o.supervisor.Start(name); err != nil {
			logger.Error("cannot start stage", "stage", name, "error", err)
		}
	}
}

func publish(p config.Params) {
	metrics.SetGeneration(p.Generation)
	metrics.SetControl("complexity_bias", p.ComplexityBias)
	metrics.SetControl("chaos_intensity", p.ChaosIntensity)
	metrics.SetControl("deletion_chance", p.DeletionChance)
	metrics.SetControl("obscurity_chance", p.ObscurityChance)
	metrics.SetControl("decay_window_seconds", p.DecayWindowSeconds)
}
