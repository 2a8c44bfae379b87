package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/The-Spiral/internal/config"
	"github.com/kingrea/The-Spiral/internal/logging"
	"github.com/stretchr/testify/require"
)

type scriptedLoader struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error
}

func (l *scriptedLoader) Load() (config.Params, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if err := l.fail[l.calls]; err != nil {
		return config.Params{}, err
	}
	p := config.Default()
	p.ValidatorPulseSeconds = 0.001
	p.Generation = l.calls
	return p, nil
}

type recordingStage struct {
	mu     sync.Mutex
	seen   []int
	stopAt int
}

func (s *recordingStage) Name() string { return config.StageValidator }

func (s *recordingStage) Pulse(_ context.Context, p config.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, p.Generation)
	if s.stopAt > 0 && len(s.seen) >= s.stopAt {
		return fmt.Errorf("done: %w", ErrStop)
	}
	return nil
}

func TestRunFailsWhenStartupLoadFails(t *testing.T) {
	loader := &scriptedLoader{fail: map[int]error{1: config.ErrDecode}}
	err := NewRunner(&recordingStage{}, loader, logging.Discard()).Run(context.Background())
	require.ErrorIs(t, err, config.ErrDecode)
}

func TestRunKeepsSnapshotWhenReloadFails(t *testing.T) {
	loader := &scriptedLoader{fail: map[int]error{2: errors.New("partial write")}}
	s := &recordingStage{stopAt: 3}

	err := NewRunner(s, loader, logging.Discard()).Run(context.Background())
	require.ErrorIs(t, err, ErrStop)
	require.Equal(t, []int{1, 1, 3}, s.seen)
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &recordingStage{}
	done := make(chan error, 1)
	go func() {
		done <- NewRunner(s, &scriptedLoader{}, logging.Discard()).Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.seen)
}

func TestPulseOnce(t *testing.T) {
	s := &recordingStage{}
	require.NoError(t, NewRunner(s, &scriptedLoader{}, nil).PulseOnce(context.Background()))
	require.Len(t, s.seen, 1)
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(config.StageValidator, func(env Env) Stage {
		require.NotNil(t, env.Rand)
		require.NotNil(t, env.Now)
		require.NotNil(t, env.Ledger)
		return &recordingStage{}
	})
	require.Error(t, r.Register(config.StageValidator, func(Env) Stage { return nil }))
	require.Error(t, r.Register("", func(Env) Stage { return nil }))
	require.ErrorContains(t, r.Register("hermes", func(Env) Stage { return &recordingStage{} }), "no pulse interval")

	s, err := r.Resolve(config.StageValidator, Env{})
	require.NoError(t, err)
	require.Equal(t, config.StageValidator, s.Name())

	_, err = r.Resolve(config.StageHarness, Env{})
	require.ErrorIs(t, err, ErrUnknown)
	require.Equal(t, []string{config.StageValidator}, r.Names())
}

func TestRegistryRejectsMislabelledStage(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(config.StageDecayer, func(Env) Stage { return &recordingStage{} })
	r.MustRegister(config.StageCorruptor, func(Env) Stage { return nil })

	_, err := r.Resolve(config.StageDecayer, Env{})
	require.ErrorContains(t, err, "built validator")
	_, err = r.Resolve(config.StageCorruptor, Env{})
	require.ErrorContains(t, err, "returned nil")
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{config.StageHarness, config.StageValidator, config.StageDecayer} {
		r.MustRegister(name, func(Env) Stage { return &recordingStage{} })
	}
	require.Equal(t, []string{config.StageHarness, config.StageValidator, config.StageDecayer}, r.Names())
}
