// Package decayer drains the graveyard into the abyss once artifacts outlive
// the decay window. Nothing leaves the abyss.
package decayer

import (
	"context"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/stage"
)

// Expired reports whether an artifact last modified at mtime has decayed.
// An artifact exactly window old has not.
func Expired(mtime, now time.Time, window time.Duration) bool {
	return now.Sub(mtime) > window
}

// Decayer moves expired graveyard artifacts into the abyss.
type Decayer struct {
	env stage.Env
}

// New builds a decayer.
func New(env stage.Env) *Decayer {
	return &Decayer{env: env.WithDefaults()}
}

func (d *Decayer) Name() string { return config.StageDecayer }

func (d *Decayer) Pulse(ctx context.Context, p config.Params) error {
	graveyard := partition.New("graveyard", p.Paths.Graveyard, p.ArtifactExt)
	abyss := partition.New("abyss", p.Paths.Abyss, p.ArtifactExt)
	now := d.env.Now()
	window := p.DecayWindow()

	artifacts, err := graveyard.List()
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return nil
		}
		if !Expired(artifact.ModTime, now, window) {
			continue
		}
		logger := ctxlog.FromContext(ctx).With("artifact", artifact.Name)
		if err := graveyard.MoveTo(artifact.Name, abyss); err != nil {
			stage.LogFailure(logger, "cannot decay artifact", err)
			continue
		}
		logger.Info("artifact decayed", "age", artifact.Age(now).Round(time.Second))
		d.env.Record(ctx, ledger.Event{
			Artifact: artifact.Name, Stage: d.Name(), Action: ledger.ActionDecayed,
			From: graveyard.Name(), To: abyss.Name(),
		})
	}
	return nil
}
