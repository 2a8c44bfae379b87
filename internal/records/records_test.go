package records

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewIDIsTimeOrdered(t *testing.T) {
	first := NewID()
	time.Sleep(2 * time.Millisecond)
	second := NewID()
	require.Less(t, ExperimentFile(first), ExperimentFile(second))
}

func TestLatestResultPicksGreatestName(t *testing.T) {
	dir := t.TempDir()
	older := ExperimentResult{ID: "0001", Status: StatusSuccess, Artifact: "a.go"}
	newer := ExperimentResult{ID: "0002", Status: StatusRuntimeError, Artifact: "b.go", Error: "boom"}
	_, err := WriteResult(dir, newer)
	require.NoError(t, err)
	_, err = WriteResult(dir, older)
	require.NoError(t, err)

	got, name, err := LatestResult(dir)
	require.NoError(t, err)
	require.Equal(t, ExperimentFile("0002"), name)
	require.Equal(t, StatusRuntimeError, got.Status)
	require.Equal(t, "boom", got.Error)
}

func TestLatestResultEmpty(t *testing.T) {
	_, _, err := LatestResult(t.TempDir())
	require.True(t, errors.Is(err, ErrNoRecords))

	_, _, err = LatestResult(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestLatestChaosIgnoresMarkers(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteChaos(dir, ChaosEvent{ID: "0001", Kind: ChaosStateReset, Intensity: 0.2})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChaosMarkerFile("ffff")), []byte("{}"), 0o644))

	got, name, err := LatestChaos(dir)
	require.NoError(t, err)
	require.Equal(t, ChaosFile("0001"), name)
	require.Equal(t, ChaosStateReset, got.Kind)
}

func TestResultJSONFieldNames(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteResult(dir, ExperimentResult{ID: "x", Status: StatusSuccess, Artifact: "sample.go", Stdout: "2"})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"tested_file": "sample.go"`)
	require.Contains(t, string(data), `"status": "success"`)
	require.NotContains(t, string(data), "error_message")
}

func TestStatusFailed(t *testing.T) {
	require.True(t, StatusRuntimeError.Failed())
	require.True(t, StatusSyntaxError.Failed())
	require.False(t, StatusSuccess.Failed())
	require.False(t, StatusInternalError.Failed())
}
