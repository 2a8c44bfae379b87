package faults

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/stage/stagetest"
	"github.com/stretchr/testify/require"
)

func TestPulseWithoutSandboxesIsNoop(t *testing.T) {
	params := stagetest.Params(t)
	require.NoError(t, New(stage.Env{}).Pulse(context.Background(), params))
	names, err := records.Names(params.Paths.ChaosLog, records.ChaosPrefix)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestPulseWritesMarkerThenLog(t *testing.T) {
	params := stagetest.Params(t)
	params.ChaosIntensity = 0.02
	target := records.ExperimentPrefix + "b"
	for _, name := range []string{records.ExperimentPrefix + "a", target} {
		require.NoError(t, os.MkdirAll(filepath.Join(params.Paths.Sandbox, name), 0o755))
	}
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	inj := New(stage.Env{Now: stagetest.Clock(now), Rand: &stagetest.Rand{Ints: []int{1, 2}}})

	require.NoError(t, inj.Pulse(context.Background(), params))

	event, _, err := records.LatestChaos(params.Paths.ChaosLog)
	require.NoError(t, err)
	require.Equal(t, records.ChaosMemoryPressure, event.Kind)
	require.Equal(t, target, event.Target)
	require.Equal(t, 0.02, event.Intensity)
	require.True(t, event.Timestamp.Equal(now))
	require.FileExists(t, filepath.Join(params.Paths.Sandbox, target, records.ChaosMarkerFile(event.ID)))
}

func TestInjectIntoVanishedSandboxWritesNothing(t *testing.T) {
	params := stagetest.Params(t)
	inj := New(stage.Env{})

	_, err := inj.Inject(params, records.ExperimentPrefix+"gone", records.ChaosStateReset)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoDirExists(t, filepath.Join(params.Paths.Sandbox, records.ExperimentPrefix+"gone"))

	names, err := records.Names(params.Paths.ChaosLog, records.ChaosPrefix)
	require.NoError(t, err)
	require.Empty(t, names)
}
