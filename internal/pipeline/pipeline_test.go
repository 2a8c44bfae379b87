package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/logging"
	"github.com/kingrea/The-Spiral/internal/orchestrator"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/stage/stagetest"
	"github.com/kingrea/The-Spiral/internal/supervisor"
	"github.com/stretchr/testify/require"
)

func pulse(t *testing.T, reg *stage.Registry, env stage.Env, name string, p config.Params) {
	t.Helper()
	s, err := reg.Resolve(name, env)
	require.NoError(t, err)
	require.NoError(t, s.Pulse(context.Background(), p))
}

func TestBuiltinsRegistersEveryWorker(t *testing.T) {
	reg := Builtins()
	require.Equal(t, Workers, reg.Names())
	for _, name := range Workers {
		s, err := reg.Resolve(name, stage.Env{})
		require.NoError(t, err)
		require.Equal(t, name, s.Name())
	}
	_, err := reg.Resolve(config.StageOrchestrator, stage.Env{})
	require.ErrorIs(t, err, stage.ErrUnknown)
}

func TestScriptFlowsToSuccessfulExperiment(t *testing.T) {
	store, p := stagetest.Store(t)
	book := &stagetest.Ledger{}
	env := stage.Env{Ledger: book, Rand: &stagetest.Rand{}}
	reg := Builtins()
	stagetest.WriteFile(t, p.Paths.Raw, "sample.go", "print(1+1)", time.Time{})

	pulse(t, reg, env, config.StageValidator, p)
	require.True(t, stagetest.Exists(filepath.Join(p.Paths.Valid, "sample.go")))
	pulse(t, reg, env, config.StageClassifier, p)
	require.True(t, stagetest.Exists(filepath.Join(p.Paths.Archive, "sample.go")))
	pulse(t, reg, env, config.StageHarness, p)

	result, _, err := records.LatestResult(p.Paths.Results)
	require.NoError(t, err)
	require.Equal(t, records.StatusSuccess, result.Status, "error: %s", result.Error)
	require.Equal(t, "2", result.Stdout)
	require.Equal(t, "sample.go", result.Artifact)

	var actions []ledger.Action
	for _, e := range book.Events() {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []ledger.Action{ledger.ActionValidated, ledger.ActionArchived, ledger.ActionExecuted}, actions)

	require.NoError(t, orchestrator.New(store).Pulse(context.Background(), p))
	after, err := store.Load()
	require.NoError(t, err)
	require.InDelta(t, p.ComplexityBias+p.BiasSuccessStep, after.ComplexityBias, 1e-9)
}

func TestBrokenScriptIsRejected(t *testing.T) {
	_, p := stagetest.Store(t)
	reg := Builtins()
	stagetest.WriteFile(t, p.Paths.Raw, "broken.go", "print((1+1)", time.Time{})

	pulse(t, reg, stage.Env{}, config.StageValidator, p)
	require.True(t, stagetest.Exists(filepath.Join(p.Paths.Rejected, "broken.go")))
	require.False(t, stagetest.Exists(filepath.Join(p.Paths.Valid, "broken.go")))
	require.False(t, stagetest.Exists(filepath.Join(p.Paths.Raw, "broken.go")))
}

func TestSuperviseRegistersLoops(t *testing.T) {
	store, _ := stagetest.Store(t)
	sup := supervisor.New(context.Background(), logging.Discard())
	defer sup.Stop()

	require.NoError(t, Supervise(sup, Builtins(), stage.Env{}, store, logging.Discard()))
	require.ElementsMatch(t, Workers, sup.Names())
	require.Error(t, Supervise(sup, Builtins(), stage.Env{}, store, logging.Discard()), "names are registered once")
}
