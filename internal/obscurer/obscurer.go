// Package obscurer retires aged archive artifacts into the graveyard. Complex
// artifacts resist: every kind of complexity indicator they contain lowers
// their odds.
package obscurer

import (
	"context"
	"math"
	"regexp"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/stage"
)

const (
	// ResistancePerIndicator is the share of the base chance each indicator
	// removes.
	ResistancePerIndicator = 0.15
	// FloorChance is the lowest adjusted chance a resistant artifact can reach.
	FloorChance = 0.05
)

var indicators = []*regexp.Regexp{
	regexp.MustCompile(`\bfor\s+\w+(?:\s*,\s*\w+)?\s*:?=\s*range\b`),
	regexp.MustCompile(`\btype\s+\w+\s+struct\b`),
	regexp.MustCompile(`\bimport\s*[("]`),
	regexp.MustCompile(`\bharness\b`),
	regexp.MustCompile(`\binjector\b`),
	regexp.MustCompile(`\borchestrator\b`),
}

// Resistance counts the complexity indicators present in content. Repeats of
// one indicator score once.
func Resistance(content string) int {
	score := 0
	for _, re := range indicators {
		if re.MatchString(content) {
			score++
		}
	}
	return score
}

// AdjustedChance is the second-gate threshold for an artifact with the given
// resistance score.
func AdjustedChance(base float64, score int) float64 {
	if score <= 0 {
		return base
	}
	return math.Max(FloorChance, base*(1-ResistancePerIndicator*float64(score)))
}

// Obscurer moves archive artifacts into the graveyard.
type Obscurer struct {
	env stage.Env
}

// New builds an obscurer.
func New(env stage.Env) *Obscurer {
	return &Obscurer{env: env.WithDefaults()}
}

func (o *Obscurer) Name() string { return config.StageObscurer }

// Pulse runs every archived artifact through the age, chance and resistance
// gates, stopping at the first gate that fails.
func (o *Obscurer) Pulse(ctx context.Context, p config.Params) error {
	graveyard := partition.New("graveyard", p.Paths.Graveyard, p.ArtifactExt)
	now := o.env.Now()
	minAge := p.MinFileAge()

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
			if artifact.Age(now) < minAge {
				continue
			}
			if o.env.Rand.Float64() > p.ObscurityChance {
				continue
			}
			logger := ctxlog.FromContext(ctx).With("artifact", artifact.Name, "partition", dir.Name())
			content, err := dir.Read(artifact.Name)
			if err != nil {
				stage.LogFailure(logger, "cannot read artifact", err)
				continue
			}
			score := Resistance(string(content))
			if score > 0 && o.env.Rand.Float64() > AdjustedChance(p.ObscurityChance, score) {
				logger.Debug("artifact resisted obscurity", "resistance", score)
				continue
			}
			if err := dir.MoveTo(artifact.Name, graveyard); err != nil {
				stage.LogFailure(logger, "cannot obscure artifact", err)
				continue
			}
			logger.Info("artifact obscured", "resistance", score)
			o.env.Record(ctx, ledger.Event{
				Artifact: artifact.Name, Stage: o.Name(), Action: ledger.ActionObscured,
				From: dir.Name(), To: graveyard.Name(),
			})
		}
	}
	return nil
}
