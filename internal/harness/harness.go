// Package harness executes archived artifacts in throwaway sandboxes and
// records what happened. Execution isolation is logical only: the script sees
// an allow-listed standard library plus a file handle rooted at its sandbox,
// and the process working directory points at the sandbox while it runs.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/metrics"
	"github.com/kingrea/The-Spiral/internal/partition"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/syntax"
)

// Harness is the execution stage.
type Harness struct {
	env stage.Env
}

// New builds a harness.
func New(env stage.Env) *Harness {
	return &Harness{env: env.WithDefaults()}
}

func (h *Harness) Name() string { return config.StageHarness }

// Pulse prunes expired sandboxes, then runs one randomly chosen archived
// artifact. An empty archive is a no-op.
func (h *Harness) Pulse(ctx context.Context, p config.Params) error {
	logger := ctxlog.FromContext(ctx)
	if err := h.prune(ctx, p); err != nil {
		logger.Warn("sandbox cleanup failed", "error", err)
	}

	type candidate struct {
		dir  partition.Partition
		name string
	}
	var candidates []candidate
	for _, dir := range partition.Archives(p) {
		artifacts, err := dir.List()
		if err != nil {
			logger.Error("cannot list archive", "partition", dir.Name(), "error", err)
			continue
		}
		for _, artifact := range artifacts {
			candidates = append(candidates, candidate{dir: dir, name: artifact.Name})
		}
	}
	if len(candidates) == 0 {
		logger.Debug("archive empty, nothing to run")
		return nil
	}
	picked := candidates[h.env.Rand.IntN(len(candidates))]

	result := h.Experiment(ctx, p, picked.dir, picked.name)
	if _, err := records.WriteResult(p.Paths.Results, result); err != nil {
		return err
	}
	metrics.CountExperiment(string(result.Status))
	h.env.Record(ctx, ledger.Event{
		Artifact: picked.name, Stage: h.Name(), Action: ledger.ActionExecuted,
		From: picked.dir.Name(), Detail: string(result.Status),
	})
	logger.Info("experiment finished", "artifact", picked.name, "experiment", result.ID, "status", result.Status)
	return nil
}

// Experiment runs one artifact in a fresh sandbox and returns its result. The
// archived copy is only read.
func (h *Harness) Experiment(ctx context.Context, p config.Params, dir partition.Partition, name string) records.ExperimentResult {
	id := records.NewID()
	sandbox := filepath.Join(p.Paths.Sandbox, records.ExperimentPrefix+id)
	result := records.ExperimentResult{
		ID:        id,
		Artifact:  name,
		Sandbox:   sandbox,
		Timestamp: h.env.Now().UTC(),
	}
	internal := func(err error) records.ExperimentResult {
		result.Status = records.StatusInternalError
		result.Error = err.Error()
		return result
	}

	src, err := dir.Read(name)
	if err != nil {
		return internal(err)
	}
	if err := os.MkdirAll(sandbox, 0o755); err != nil {
		return internal(fmt.Errorf("harness: create sandbox: %w", err))
	}
	if err := os.WriteFile(filepath.Join(sandbox, name), src, 0o644); err != nil {
		return internal(fmt.Errorf("harness: stage source: %w", err))
	}

	if err := syntax.Check(name, src); err != nil {
		result.Status = records.StatusSyntaxError
		result.Error = err.Error()
		return result
	}

	outcome, err := Execute(ctx, sandbox, src, p.AllowedPackages)
	if err != nil {
		return internal(err)
	}
	result.Stdout = outcome.Stdout
	result.Stderr = outcome.Stderr
	switch {
	case outcome.Err == nil:
		result.Status = records.StatusSuccess
	case ctx.Err() != nil && errors.Is(outcome.Err, ctx.Err()):
		return internal(fmt.Errorf("harness: abandoned: %w", outcome.Err))
	default:
		result.Status = records.StatusRuntimeError
		result.Error = outcome.Err.Error()
	}
	return result
}

// prune removes sandboxes older than the retention window.
func (h *Harness) prune(ctx context.Context, p config.Params) error {
	retention := p.SandboxRetention()
	if retention <= 0 {
		return nil
	}
	names, err := partition.Subdirs(p.Paths.Sandbox, records.ExperimentPrefix)
	if err != nil {
		return err
	}
	now := h.env.Now()
	var errs []error
	for _, name := range names {
		path := filepath.Join(p.Paths.Sandbox, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= retention {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		ctxlog.FromContext(ctx).Debug("sandbox removed", "sandbox", name, "age", now.Sub(info.ModTime()).Round(time.Second))
	}
	return errors.Join(errs...)
}
