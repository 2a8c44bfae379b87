package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/journal"
	"github.com/kingrea/The-Spiral/internal/records"
	"github.com/kingrea/The-Spiral/internal/stage/stagetest"
)

type failingLoader struct{}

func (failingLoader) Load() (config.Params, error) { return config.Params{}, errors.New("params unreadable") }

func TestSnapshotRendersBoard(t *testing.T) {
	store, p := stagetest.Store(t)
	stagetest.WriteFile(t, p.Paths.Raw, "fresh.go", "print(1)", time.Time{})
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	_, err := records.WriteResult(p.Paths.Results, records.ExperimentResult{
		ID: records.NewID(), Status: records.StatusRuntimeError, Artifact: "boom.go",
		Error: "panic: boom", Timestamp: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("write result: %v", err)
	}
	j, err := journal.New(p.Paths.Journal)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if err := j.Append(journal.Entry{At: now, Generation: 3, Bias: 0.45, Feedback: "runtime_error"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	app := NewApp(store, WithClock(stagetest.Clock(now)))
	if !strings.Contains(app.View(), "Loading") {
		t.Fatalf("expected loading view before first snapshot")
	}
	model, cmd := app.Update(app.buildSnapshot())
	if cmd != nil {
		t.Fatalf("manual refresh must not re-arm the timer")
	}
	view := model.View()
	for _, want := range []string{"SPIRAL", "Generation 0", "raw", "boom.go", "runtime_error", "1m0s ago", "gen=3", "generations.log"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSnapshotErrorIsShown(t *testing.T) {
	app := NewApp(failingLoader{})
	model, _ := app.Update(app.buildSnapshot())
	if !strings.Contains(model.View(), "params unreadable") {
		t.Fatalf("expected error in view:\n%s", model.View())
	}
}

func TestTickedSnapshotRearmsTimer(t *testing.T) {
	store, _ := stagetest.Store(t)
	app := NewApp(store)
	msg := app.buildSnapshot()
	msg.ticked = true
	if _, cmd := app.Update(msg); cmd == nil {
		t.Fatalf("ticked refresh must schedule the next one")
	}
}

func TestQuitKeys(t *testing.T) {
	store, _ := stagetest.Store(t)
	app := NewApp(store)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestChangeTriggersRefresh(t *testing.T) {
	store, _ := stagetest.Store(t)
	changes := make(chan struct{}, 1)
	app := NewApp(store, WithChanges(changes))
	changes <- struct{}{}
	if msg := app.waitForChange()(); msg != (changeMsg{}) {
		t.Fatalf("expected change message, got %#v", msg)
	}
	close(changes)
	if msg := app.waitForChange()(); msg != nil {
		t.Fatalf("closed channel should yield nil, got %#v", msg)
	}
}

func TestWatcherCoalescesEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher([]string{dir, filepath.Join(dir, "missing")})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	defer w.Close()

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "f"+string(rune('a'+i))+".go")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatalf("expected a change notification")
	}
}

func TestBiasBar(t *testing.T) {
	if got := biasBar(0.5, 4); got != "[██··]" {
		t.Fatalf("biasBar(0.5) = %q", got)
	}
	if got := biasBar(2, 2); got != "[██]" {
		t.Fatalf("biasBar clamps high, got %q", got)
	}
}
