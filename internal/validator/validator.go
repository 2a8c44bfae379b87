// Package validator admits raw artifacts into the pipeline. Scripts that parse
// are stamped with a processing banner and forwarded to valid-output; scripts
// that do not are quarantined unmodified in the rejected partition.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/syntax"
)

// Banner is the header prepended to every admitted artifact.
func Banner(name string, at time.Time) string {
	return fmt.Sprintf("// Processed by %s on %s\n// Original file: %s\n",
		config.StageValidator, at.UTC().Format(time.RFC3339), name)
}

// Validator is the raw-partition consumer.
type Validator struct {
	env stage.Env
}

// New builds a validator.
func New(env stage.Env) *Validator {
	return &Validator{env: env.WithDefaults()}
}

func (v *Validator) Name() string { return config.StageValidator }

// Pulse checks every artifact currently in raw.
func (v *Validator) Pulse(ctx context.Context, p config.Params) error {
	raw := partition.New("raw", p.Paths.Raw, p.ArtifactExt)
	valid := partition.New("valid-output", p.Paths.Valid, p.ArtifactExt)
	rejected := partition.New("rejected", p.Paths.Rejected, p.ArtifactExt)

	artifacts, err := raw.List()
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return nil
		}
		v.admit(ctx, artifact.Name, raw, valid, rejected)
	}
	return nil
}

func (v *Validator) admit(ctx context.Context, name string, raw, valid, rejected partition.Partition) {
	logger := ctxlog.FromContext(ctx).With("artifact", name)

	src, err := raw.Read(name)
	if errors.Is(err, partition.ErrVanished) {
		logger.Debug("artifact vanished before validation")
		return
	}
	if err != nil {
		logger.Error("cannot read artifact, leaving for retry", "error", err)
		return
	}

	if err := syntax.Check(name, src); err != nil {
		if !syntax.IsSyntax(err) {
			logger.Error("cannot check artifact, leaving for retry", "error", err)
			return
		}
		if err := raw.MoveTo(name, rejected); err != nil {
			stage.LogFailure(logger, "cannot reject artifact", err)
			return
		}
		logger.Warn("artifact rejected", "reason", err)
		v.env.Record(ctx, ledger.Event{
			Artifact: name, Stage: v.Name(), Action: ledger.ActionRejected,
			From: raw.Name(), To: rejected.Name(), Detail: err.Error(),
		})
		return
	}

	out := append([]byte(Banner(name, v.env.Now())), src...)
	if err := valid.Write(name, out); err != nil {
		logger.Error("cannot write validated artifact", "error", err)
		return
	}
	if err := raw.Remove(name); err != nil && !errors.Is(err, partition.ErrVanished) {
		logger.Error("validated artifact still in raw", "error", err)
		return
	}
	logger.Info("artifact validated")
	v.env.Record(ctx, ledger.Event{
		Artifact: name, Stage: v.Name(), Action: ledger.ActionValidated,
		From: raw.Name(), To: valid.Name(),
	})
}
