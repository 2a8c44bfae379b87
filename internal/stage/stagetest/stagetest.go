// Package stagetest provides fixtures for exercising stages against a
// throwaway partition tree.
package stagetest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/ledger"
)

// Store creates a parameter store under a temporary directory, with every
// partition created.
func Store(t testing.TB) (*config.Store, config.Params) {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), config.DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	params, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := config.EnsureDirs(params); err != nil {
		t.Fatal(err)
	}
	return store, params
}

// Params is Store without the store.
func Params(t testing.TB) config.Params {
	t.Helper()
	_, params := Store(t)
	return params
}

// Rand replays scripted draws. Once a script runs out, Float64 returns 0.999
// and IntN returns 0. OnFloat, when set, runs before each Float64 draw with
// the draw's 1-based index.
type Rand struct {
	mu      sync.Mutex
	Floats  []float64
	Ints    []int
	OnFloat func(n int)
	draws   int
}

func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	if r.OnFloat != nil {
		r.OnFloat(r.draws)
	}
	if len(r.Floats) == 0 {
		return 0.999
	}
	v := r.Floats[0]
	r.Floats = r.Floats[1:]
	return v
}

func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Ints) == 0 {
		return 0
	}
	v := r.Ints[0]
	r.Ints = r.Ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

// Clock returns a fixed time source.
func Clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// Ledger collects recorded events. OnRecord, when set, runs after each event
// is stored.
type Ledger struct {
	mu       sync.Mutex
	events   []ledger.Event
	OnRecord func(ledger.Event)
}

func (l *Ledger) Record(e ledger.Event) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	hook := l.OnRecord
	l.mu.Unlock()
	if hook != nil {
		hook(e)
	}
	return nil
}

// Events returns a copy of everything recorded.
func (l *Ledger) Events() []ledger.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Event(nil), l.events...)
}

// WriteFile creates dir/name with content and the given modification time.
// A zero mtime leaves the current time.
func WriteFile(t testing.TB, dir, name, content string, mtime time.Time) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

// Remove deletes path, failing the test on any error but absence.
func Remove(t testing.TB, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
