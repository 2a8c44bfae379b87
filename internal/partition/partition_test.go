package partition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.go", "a.go", "notes.txt", ".hidden.go"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.go"), 0o755); err != nil {
		t.Fatal(err)
	}

	artifacts, err := New("raw", dir, ".go").List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(artifacts) != 2 || artifacts[0].Name != "a.go" || artifacts[1].Name != "b.go" {
		t.Fatalf("unexpected listing: %+v", artifacts)
	}
	if artifacts[0].Path != filepath.Join(dir, "a.go") {
		t.Fatalf("unexpected path %q", artifacts[0].Path)
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	artifacts, err := New("raw", filepath.Join(t.TempDir(), "absent"), ".go").List()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(artifacts) != 0 {
		t.Fatalf("expected no artifacts, got %+v", artifacts)
	}
}

func TestMoveToCreatesDestination(t *testing.T) {
	root := t.TempDir()
	src := New("valid", filepath.Join(root, "valid"), ".go")
	dst := New("graveyard", filepath.Join(root, "graveyard"), ".go")
	if err := src.Write("a.go", []byte("package main")); err != nil {
		t.Fatal(err)
	}

	if err := src.MoveTo("a.go", dst); err != nil {
		t.Fatalf("MoveTo returned error: %v", err)
	}
	if _, err := os.Stat(src.Path("a.go")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source to be gone, got %v", err)
	}
	data, err := dst.Read("a.go")
	if err != nil {
		t.Fatalf("expected file in destination: %v", err)
	}
	if string(data) != "package main" {
		t.Fatalf("content changed during move: %q", data)
	}
}

func TestVanishedArtifactsReportErrVanished(t *testing.T) {
	root := t.TempDir()
	p := New("archive", root, ".go")
	other := New("abyss", filepath.Join(root, "abyss"), ".go")

	checks := map[string]error{
		"read":    func() error { _, err := p.Read("gone.go"); return err }(),
		"stat":    func() error { _, err := p.Stat("gone.go"); return err }(),
		"rewrite": p.Rewrite("gone.go", []byte("x")),
		"remove":  p.Remove("gone.go"),
		"move":    p.MoveTo("gone.go", other),
	}
	for op, err := range checks {
		if !errors.Is(err, ErrVanished) {
			t.Fatalf("%s: expected ErrVanished, got %v", op, err)
		}
	}
	if _, err := os.Stat(p.Path("gone.go")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rewrite must not recreate a vanished artifact")
	}
}

func TestRewriteKeepsName(t *testing.T) {
	p := New("archive", t.TempDir(), ".go")
	if err := p.Write("a.go", []byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	if err := p.Rewrite("a.go", []byte("ab##ef")); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	data, _ := p.Read("a.go")
	if string(data) != "ab##ef" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestArtifactAge(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := Artifact{ModTime: now.Add(-90 * time.Second)}
	if a.Age(now) != 90*time.Second {
		t.Fatalf("unexpected age %v", a.Age(now))
	}
}

func TestSubdirsMatchesPrefix(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"experiment_b", "experiment_a", "other"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "experiment_file"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	dirs, err := Subdirs(root, "experiment_")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[0] != "experiment_a" || dirs[1] != "experiment_b" {
		t.Fatalf("unexpected subdirs %v", dirs)
	}
	missing, err := Subdirs(filepath.Join(root, "absent"), "experiment_")
	if err != nil || missing != nil {
		t.Fatalf("expected empty result for missing root, got %v %v", missing, err)
	}
}
