// Package partition treats directories as lifecycle mailboxes.
//
// Every stage follows the same access pattern: take a snapshot listing, then
// act on each entry after re-checking that it still exists. There are no
// locks; a file that disappears between listing and acting surfaces as
// ErrVanished and callers skip it.
package partition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
)

// ErrVanished reports that an artifact was moved or removed by someone else
// after it was listed.
var ErrVanished = errors.New("partition: artifact vanished")

// Artifact is one file inside a partition at listing time.
type Artifact struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Age is the time elapsed since the last modification.
func (a Artifact) Age(now time.Time) time.Duration {
	return now.Sub(a.ModTime)
}

// Partition is a directory holding artifacts in one lifecycle state.
type Partition struct {
	name string
	dir  string
	ext  string
}

// New binds a partition to dir. Only files ending in ext are listed; an empty
// ext lists every regular file.
func New(name, dir, ext string) Partition {
	return Partition{name: name, dir: dir, ext: ext}
}

// Name is the partition's label.
func (p Partition) Name() string { return p.name }

// Dir is the partition's directory.
func (p Partition) Dir() string { return p.dir }

// Path joins an artifact name onto the partition directory.
func (p Partition) Path(name string) string {
	return filepath.Join(p.dir, name)
}

// Ensure creates the directory if needed.
func (p Partition) Ensure() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("partition %s: ensure %s: %w", p.name, p.dir, err)
	}
	return nil
}

// List snapshots the partition, sorted by name. A missing directory is empty.
// Entries that vanish while the listing is being built are left out.
func (p Partition) List() ([]Artifact, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition %s: list: %w", p.name, err)
	}
	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !p.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:    entry.Name(),
			Path:    p.Path(entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// Count returns how many artifacts the partition currently holds.
func (p Partition) Count() (int, error) {
	artifacts, err := p.List()
	return len(artifacts), err
}

// Stat re-checks an artifact right before acting on it.
func (p Partition) Stat(name string) (Artifact, error) {
	info, err := os.Stat(p.Path(name))
	if err != nil {
		return Artifact{}, p.wrap("stat", name, err)
	}
	return Artifact{Name: name, Path: p.Path(name), ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Read returns an artifact's content.
func (p Partition) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(p.Path(name))
	if err != nil {
		return nil, p.wrap("read", name, err)
	}
	return data, nil
}

// Write creates or replaces an artifact, creating the directory if needed.
func (p Partition) Write(name string, data []byte) error {
	if err := p.Ensure(); err != nil {
		return err
	}
	if err := os.WriteFile(p.Path(name), data, 0o644); err != nil {
		return p.wrap("write", name, err)
	}
	return nil
}

// Rewrite replaces the content of an existing artifact in place. It never
// recreates an artifact that vanished.
func (p Partition) Rewrite(name string, data []byte) error {
	f, err := os.OpenFile(p.Path(name), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return p.wrap("rewrite", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return p.wrap("rewrite", name, err)
	}
	if err := f.Close(); err != nil {
		return p.wrap("rewrite", name, err)
	}
	return nil
}

// Remove deletes an artifact.
func (p Partition) Remove(name string) error {
	if _, err := p.Stat(name); err != nil {
		return err
	}
	if err := os.Remove(p.Path(name)); err != nil {
		return p.wrap("remove", name, err)
	}
	return nil
}

// MoveTo relocates an artifact into dst under the same name, creating dst if
// needed. An existing file of the same name in dst is replaced.
func (p Partition) MoveTo(name string, dst Partition) error {
	if _, err := p.Stat(name); err != nil {
		return err
	}
	if err := dst.Ensure(); err != nil {
		return err
	}
	src, target := p.Path(name), dst.Path(name)
	err := os.Rename(src, target)
	if errors.Is(err, syscall.EXDEV) {
		err = copyThenRemove(src, target)
	}
	if err != nil {
		return p.wrap("move", name, err)
	}
	return nil
}

func (p Partition) matches(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return p.ext == "" || strings.HasSuffix(name, p.ext)
}

func (p Partition) wrap(op, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s %s/%s: %w", ErrVanished, op, p.name, name, err)
	}
	return fmt.Errorf("partition %s: %s %s: %w", p.name, op, name, err)
}

func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Subdirs lists the directories directly under root whose names start with
// prefix. A missing root yields nothing.
func Subdirs(root, prefix string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("partition: list %s: %w", root, err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Archives returns the three archive partitions, general first.
func Archives(p config.Params) []Partition {
	names := []string{"archive-general", "archive-olympian", "archive-chthonic"}
	dirs := p.ArchiveDirs()
	out := make([]Partition, len(dirs))
	for i, dir := range dirs {
		out[i] = New(names[i], dir, p.ArtifactExt)
	}
	return out
}
