// Package corruptor randomly damages or deletes archived artifacts in place.
package corruptor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/stage"
)

// ChaosSymbols are the bytes a corrupted run is overwritten with.
var ChaosSymbols = []byte("#@$%&*!?X")

// MaxRun bounds the length of one corrupted run.
const MaxRun = 5

// Decision is what happens to one artifact in one pulse.
type Decision int

const (
	Keep Decision = iota
	Delete
	Corrupt
)

func (d Decision) String() string {
	switch d {
	case Delete:
		return "delete"
	case Corrupt:
		return "corrupt"
	default:
		return "keep"
	}
}

// Decide maps one uniform draw onto a decision. Deletion is checked first, so
// one draw never does both.
func Decide(r float64, p config.Params) Decision {
	switch {
	case r < p.DeletionChance:
		return Delete
	case r < p.DeletionChance+p.ChaosIntensity:
		return Corrupt
	default:
		return Keep
	}
}

// Mutate overwrites a run of content with a single chaos symbol. It returns
// a new slice of the same length plus the run's offset and length. content
// must not be empty.
func Mutate(content []byte, r stage.Rand) (out []byte, pos, n int) {
	out = bytes.Clone(content)
	pos = r.IntN(len(content))
	n = 1 + r.IntN(min(MaxRun, len(content)-pos))
	symbol := ChaosSymbols[r.IntN(len(ChaosSymbols))]
	for i := pos; i < pos+n; i++ {
		out[i] = symbol
	}
	return out, pos, n
}

// Corruptor is the archive mutator.
type Corruptor struct {
	env stage.Env
}

// New builds a corruptor.
func New(env stage.Env) *Corruptor {
	return &Corruptor{env: env.WithDefaults()}
}

func (c *Corruptor) Name() string { return config.StageCorruptor }

// Pulse draws once per archived artifact.
func (c *Corruptor) Pulse(ctx context.Context, p config.Params) error {
	for _, dir := range partition.Archives(p) {
		artifacts, err := dir.List()
		if err != nil {
			ctxlog.FromContext(ctx).Error("cannot list archive", "partition", dir.Name(), "error", err)
			continue
		}
		for _, artifact := range artifacts {
			if ctx.Err() != nil {
				return nil
			}
			c.visit(ctx, dir, artifact.Name, Decide(c.env.Rand.Float64(), p))
		}
	}
	return nil
}

func (c *Corruptor) visit(ctx context.Context, dir partition.Partition, name string, decision Decision) {
	logger := ctxlog.FromContext(ctx).With("artifact", name, "partition", dir.Name())
	switch decision {
	case Delete:
		if err := dir.Remove(name); err != nil {
			stage.LogFailure(logger, "cannot delete artifact", err)
			return
		}
		logger.Info("artifact deleted")
		c.env.Record(ctx, ledger.Event{Artifact: name, Stage: c.Name(), Action: ledger.ActionDeleted, From: dir.Name()})
	case Corrupt:
		content, err := dir.Read(name)
		if err != nil {
			stage.LogFailure(logger, "cannot read artifact", err)
			return
		}
		if len(content) == 0 {
			logger.Debug("empty artifact left alone")
			return
		}
		out, pos, n := Mutate(content, c.env.Rand)
		if err := dir.Rewrite(name, out); err != nil {
			stage.LogFailure(logger, "cannot corrupt artifact", err)
			return
		}
		logger.Info("artifact corrupted", "offset", pos, "length", n)
		c.env.Record(ctx, ledger.Event{
			Artifact: name, Stage: c.Name(), Action: ledger.ActionCorrupted,
			From: dir.Name(), Detail: fmt.Sprintf("offset=%d length=%d", pos, n),
		})
	}
}
