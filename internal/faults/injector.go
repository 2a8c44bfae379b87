// Package faults drops simulated chaos markers into experiment sandboxes.
// Markers are observational: nothing in the executed script reacts to them.
package faults

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/metrics"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
)

// Injector is the fault injection stage.
type Injector struct {
	env stage.Env
}

// New builds an injector.
func New(env stage.Env) *Injector {
	return &Injector{env: env.WithDefaults()}
}

func (f *Injector) Name() string { return config.StageInjector }

// Pulse targets one random sandbox, if any exist.
func (f *Injector) Pulse(ctx context.Context, p config.Params) error {
	logger := ctxlog.FromContext(ctx)
	sandboxes, err := partition.Subdirs(p.Paths.Sandbox, records.ExperimentPrefix)
	if err != nil {
		return err
	}
	if len(sandboxes) == 0 {
		logger.Debug("no sandboxes to disturb")
		return nil
	}
	target := sandboxes[f.env.Rand.IntN(len(sandboxes))]
	kind := records.ChaosKinds[f.env.Rand.IntN(len(records.ChaosKinds))]

	event, err := f.Inject(p, target, kind)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("sandbox vanished before injection", "sandbox", target)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.CountChaos(string(kind))
	logger.Info("chaos injected", "sandbox", target, "kind", kind, "event", event.ID)
	return nil
}

// Inject writes the marker into the sandbox, then the chaos log record. No
// log record is written when the marker cannot be placed.
func (f *Injector) Inject(p config.Params, sandbox string, kind records.ChaosKind) (records.ChaosEvent, error) {
	dir := filepath.Join(p.Paths.Sandbox, sandbox)
	event := records.ChaosEvent{
		ID:         records.NewID(),
		Kind:       kind,
		Target:     sandbox,
		TargetPath: dir,
		Intensity:  p.ChaosIntensity,
		Timestamp:  f.env.Now().UTC(),
	}
	if _, err := records.WriteMarker(dir, event); err != nil {
		return event, err
	}
	if _, err := records.WriteChaos(p.Paths.ChaosLog, event); err != nil {
		return event, err
	}
	return event, nil
}
