package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	params, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("expected params file to be created: %v", err)
	}
	if params.ComplexityBias != 0.5 {
		t.Fatalf("expected default bias 0.5, got %v", params.ComplexityBias)
	}
	if want := filepath.Join(dir, "spiral", "raw"); params.Paths.Raw != want {
		t.Fatalf("expected raw path %q, got %q", want, params.Paths.Raw)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	doc := strings.TrimSpace(`
generation: 7
complexity_bias: 0.42
raw_path: inbox
`)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	params, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if params.Generation != 7 || params.ComplexityBias != 0.42 {
		t.Fatalf("explicit keys not applied: %+v", params)
	}
	if params.DecayWindowSeconds != 3600 {
		t.Fatalf("expected default decay window, got %v", params.DecayWindowSeconds)
	}
	if params.Paths.Raw != filepath.Join(dir, "inbox") {
		t.Fatalf("raw path not resolved: %q", params.Paths.Raw)
	}
	if params.Interval(StageValidator) != 1047*time.Millisecond {
		t.Fatalf("unexpected validator interval %v", params.Interval(StageValidator))
	}
}

func TestLoadRejectsUndecodableStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte("generation: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte("deletion_chance: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for out-of-range chance, got %v", err)
	}
}

func TestSaveRoundTripKeepsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	params, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	params.Generation = 3
	params.ComplexityBias = 0.45
	if err := store.Save(params); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), dir) {
		t.Fatalf("expected saved paths to be relative, got:\n%s", data)
	}
	reloaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Generation != 3 || reloaded.ComplexityBias != 0.45 {
		t.Fatalf("saved values lost: %+v", reloaded)
	}
	if reloaded.Paths.Abyss != params.Paths.Abyss {
		t.Fatalf("abyss path changed across save: %q vs %q", reloaded.Paths.Abyss, params.Paths.Abyss)
	}
}

func TestEnsureDirsCreatesPartitions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatal(err)
	}
	params, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := EnsureDirs(params); err != nil {
		t.Fatalf("EnsureDirs returned error: %v", err)
	}
	for _, part := range params.Partitions() {
		info, err := os.Stat(part.Dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("partition %s not created at %s", part.Name, part.Dir)
		}
	}
}
