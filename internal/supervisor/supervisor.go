// Package supervisor runs named stage loops as goroutines and reports the ones
// that exit, so the orchestrator can restart them.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/kingrea/The-Spiral/internal/metrics"
)

// ErrStopped is returned by Start once the supervisor has been stopped.
var ErrStopped = errors.New("supervisor: stopped")

// Runnable is a supervised loop. It should return when ctx is done.
type Runnable func(ctx context.Context) error

// Exit describes a loop that ended.
type Exit struct {
	Name     string
	Err      error
	Panicked bool
	Attempts int
	ExitedAt time.Time
}

type worker struct {
	cancel   context.CancelFunc
	started  time.Time
	attempts int
}

// Supervisor owns a set of named loops.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	specs    map[string]Runnable
	running  map[string]*worker
	attempts map[string]int
	exits    []Exit
	stopped  bool
	wg       sync.WaitGroup
}

// New returns a supervisor whose loops are cancelled with ctx.
func New(ctx context.Context, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		now:      time.Now,
		specs:    map[string]Runnable{},
		running:  map[string]*worker{},
		attempts: map[string]int{},
	}
}

// Register adds a loop without starting it.
func (s *Supervisor) Register(name string, fn Runnable) error {
	if name == "" {
		return fmt.Errorf("supervisor: name is required")
	}
	if fn == nil {
		return fmt.Errorf("supervisor: runnable is required for %s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.specs[name]; exists {
		return fmt.Errorf("supervisor: %s already registered", name)
	}
	s.specs[name] = fn
	return nil
}

// Names lists registered loops, sorted.
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Alive reports whether name is currently running.
func (s *Supervisor) Alive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[name]
	return ok
}

// Start launches a registered loop that is not already running.
func (s *Supervisor) Start(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	fn, ok := s.specs[name]
	if !ok {
		return fmt.Errorf("supervisor: unknown loop %s", name)
	}
	if _, running := s.running[name]; running {
		return fmt.Errorf("supervisor: %s already running", name)
	}
	s.attempts[name]++
	ctx, cancel := context.WithCancel(s.ctx)
	w := &worker{cancel: cancel, started: s.now(), attempts: s.attempts[name]}
	s.running[name] = w
	s.wg.Add(1)
	go s.run(ctx, name, fn, w)
	metrics.SetAlive(name, true)
	s.logger.Info("stage launched", "stage", name, "attempt", w.attempts)
	return nil
}

func (s *Supervisor) run(ctx context.Context, name string, fn Runnable, w *worker) {
	defer s.wg.Done()
	exit := Exit{Name: name, Attempts: w.attempts}
	func() {
		defer func() {
			if r := recover(); r != nil {
				exit.Panicked = true
				exit.Err = fmt.Errorf("supervisor: %s panicked: %v\n%s", name, r, debug.Stack())
			}
		}()
		exit.Err = fn(ctx)
	}()
	w.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	exit.ExitedAt = s.now()
	if s.running[name] == w {
		delete(s.running, name)
	}
	metrics.SetAlive(name, false)
	if s.stopped {
		return
	}
	s.exits = append(s.exits, exit)
}

// Reap returns the loops that exited since the last call.
func (s *Supervisor) Reap() []Exit {
	s.mu.Lock()
	defer s.mu.Unlock()
	exits := s.exits
	s.exits = nil
	return exits
}

// Stop cancels every loop and waits for them to return.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
