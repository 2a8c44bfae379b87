package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestHistoryIsOrderedPerArtifact(t *testing.T) {
	l := openMemory(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(Event{Artifact: "a.go", Stage: "classifier", Action: ActionArchived, At: base.Add(time.Second)}))
	require.NoError(t, l.Record(Event{Artifact: "a.go", Stage: "validator", Action: ActionValidated, At: base}))
	require.NoError(t, l.Record(Event{Artifact: "b.go", Stage: "validator", Action: ActionRejected, At: base}))

	history, err := l.History("a.go")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ActionValidated, history[0].Action)
	require.Equal(t, ActionArchived, history[1].Action)

	names, err := l.Artifacts()
	require.NoError(t, err)
	require.Equal(t, []string{"a.go", "b.go"}, names)
}

func TestHistoryDoesNotMatchNamePrefix(t *testing.T) {
	l := openMemory(t)
	require.NoError(t, l.Record(Event{Artifact: "a.go", Action: ActionValidated}))
	require.NoError(t, l.Record(Event{Artifact: "a.go.bak", Action: ActionValidated}))

	history, err := l.History("a.go")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestRecordRequiresArtifact(t *testing.T) {
	l := openMemory(t)
	require.Error(t, l.Record(Event{Action: ActionDeleted}))
	require.NoError(t, Discard.Record(Event{}))
}

func TestOpenPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, l.Record(Event{Artifact: "x.go", Action: ActionDecayed}))
	require.NoError(t, l.Close())

	reopened, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()
	history, err := reopened.History("x.go")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ActionDecayed, history[0].Action)
}
