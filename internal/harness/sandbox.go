package harness

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kingrea/The-Spiral/internal/ctxlog"
	"github.com/kingrea/The-Spiral/internal/syntax"
)

// SandboxPackage is the import path scripts use to reach their sandbox
// directory.
const SandboxPackage = "sandbox"

// The working directory is process-wide; only one execution may own it.
var workdirMu sync.Mutex

// Outcome is what a script produced. Err is nil on success and holds the
// compile error or panic otherwise.
type Outcome struct {
	Stdout string
	Stderr string
	Err    error
}

// Symbols restricts the interpreter's standard library to the allowed
// packages. Names without a standard library binding are reported as missing.
func Symbols(allowed []string) (interp.Exports, []string) {
	exports := interp.Exports{}
	var missing []string
	for _, pkg := range allowed {
		key := pkg + "/" + path.Base(pkg)
		syms, ok := stdlib.Symbols[key]
		if !ok {
			missing = append(missing, pkg)
			continue
		}
		exports[key] = syms
	}
	sort.Strings(missing)
	return exports, missing
}

// sandboxSymbols exposes a file-system handle confined to root.
func sandboxSymbols(root *os.Root) interp.Exports {
	fsys := root.FS()
	dir := root.Name()
	return interp.Exports{
		SandboxPackage + "/" + SandboxPackage: {
			"Dir": reflect.ValueOf(func() string { return dir }),
			"ReadFile": reflect.ValueOf(func(name string) ([]byte, error) {
				return fs.ReadFile(fsys, name)
			}),
			"WriteFile": reflect.ValueOf(func(name string, data []byte) error {
				f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
				if err != nil {
					return err
				}
				if _, err := f.Write(data); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			}),
			"Remove": reflect.ValueOf(func(name string) error {
				return root.Remove(name)
			}),
			"ReadDir": reflect.ValueOf(func(name string) ([]string, error) {
				entries, err := fs.ReadDir(fsys, name)
				if err != nil {
					return nil, err
				}
				names := make([]string, len(entries))
				for i, entry := range entries {
					names[i] = entry.Name()
				}
				return names, nil
			}),
		},
	}
}

// emptyFS keeps the interpreter from loading package sources from disk, so
// only the bound symbols can be imported.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// lockedBuffer lets the caller read output while an abandoned script may
// still be writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Execute runs src inside dir. The returned error covers failures outside the
// script itself; the script's own failures land in Outcome.Err. There is no
// timeout: cancelling ctx stops waiting but does not interrupt the script.
func Execute(ctx context.Context, dir string, src []byte, allowed []string) (out Outcome, err error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("harness: open sandbox %s: %w", dir, err)
	}
	defer root.Close()

	var stdout, stderr lockedBuffer
	i := interp.New(interp.Options{
		Stdin:                strings.NewReader(""),
		Stdout:               &stdout,
		Stderr:               &stderr,
		SourcecodeFilesystem: emptyFS{},
	})
	exports, missing := Symbols(allowed)
	if len(missing) > 0 {
		ctxlog.FromContext(ctx).Warn("allowed packages have no interpreter binding", "packages", missing)
	}
	i.Use(exports)
	i.Use(sandboxSymbols(root))

	workdirMu.Lock()
	defer workdirMu.Unlock()
	restore, err := enter(dir)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if rerr := restore(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	runErr := run(ctx, i, syntax.Wrap(src))
	return Outcome{Stdout: stdout.String(), Stderr: stderr.String(), Err: runErr}, nil
}

func run(ctx context.Context, i *interp.Interpreter, src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	_, err = i.EvalWithContext(ctx, src)
	return err
}

// enter switches the process into dir and returns the function that switches
// back.
func enter(dir string) (func() error, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("harness: current directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("harness: enter sandbox: %w", err)
	}
	return func() error {
		if err := os.Chdir(prev); err != nil {
			return fmt.Errorf("harness: restore working directory: %w", err)
		}
		return nil
	}, nil
}
