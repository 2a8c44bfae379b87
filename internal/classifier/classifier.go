// Package classifier files validated artifacts into the archive by their
// declared base type.
package classifier

import (
	"context"
	"errors"
	"regexp"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/stage"
)

// Kind is an archive family.
type Kind string

const (
	KindOlympian Kind = "olympian"
	KindChthonic Kind = "chthonic"
	KindGeneral  Kind = "general"
)

// A family member is a struct whose first field embeds the family base type,
// optionally through a pointer or a package qualifier.
var (
	olympianDecl = regexp.MustCompile(`\btype\s+\w+\s+struct\s*\{\s*\*?(?:\w+\.)?Olympian\s*(?:[;\n}]|//)`)
	chthonicDecl = regexp.MustCompile(`\btype\s+\w+\s+struct\s*\{\s*\*?(?:\w+\.)?Chthonic\s*(?:[;\n}]|//)`)
)

// Classify is a pure function of the artifact text. Olympian wins when both
// markers are present.
func Classify(content string) Kind {
	switch {
	case olympianDecl.MatchString(content):
		return KindOlympian
	case chthonicDecl.MatchString(content):
		return KindChthonic
	default:
		return KindGeneral
	}
}

// Classifier moves artifacts from valid-output into the archive.
type Classifier struct {
	env stage.Env
}

// New builds a classifier.
func New(env stage.Env) *Classifier {
	return &Classifier{env: env.WithDefaults()}
}

func (c *Classifier) Name() string { return config.StageClassifier }

// Pulse archives every artifact currently in valid-output.
func (c *Classifier) Pulse(ctx context.Context, p config.Params) error {
	valid := partition.New("valid-output", p.Paths.Valid, p.ArtifactExt)
	dest := map[Kind]partition.Partition{
		KindGeneral:  partition.New("archive-general", p.Paths.Archive, p.ArtifactExt),
		KindOlympian: partition.New("archive-olympian", p.Paths.ArchiveOlympian, p.ArtifactExt),
		KindChthonic: partition.New("archive-chthonic", p.Paths.ArchiveChthonic, p.ArtifactExt),
	}

	artifacts, err := valid.List()
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return nil
		}
		logger := ctxlog.FromContext(ctx).With("artifact", artifact.Name)

		kind := KindGeneral
		content, err := valid.Read(artifact.Name)
		switch {
		case errors.Is(err, partition.ErrVanished):
			logger.Debug("artifact vanished before classification")
			continue
		case err != nil:
			logger.Warn("cannot read artifact, archiving as general", "error", err)
		default:
			kind = Classify(string(content))
		}

		target := dest[kind]
		if err := valid.MoveTo(artifact.Name, target); err != nil {
			stage.LogFailure(logger, "cannot archive artifact", err)
			continue
		}
		logger.Info("artifact archived", "kind", kind)
		c.env.Record(ctx, ledger.Event{
			Artifact: artifact.Name, Stage: c.Name(), Action: ledger.ActionArchived,
			From: valid.Name(), To: target.Name(), Detail: string(kind),
		})
	}
	return nil
}
