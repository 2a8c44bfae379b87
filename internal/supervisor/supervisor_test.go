package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kingrea/The-Spiral/internal/logging"
	"github.com/stretchr/testify/require"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestStartAndStop(t *testing.T) {
	s := New(context.Background(), logging.Discard())
	require.NoError(t, s.Register("decayer", blockUntilDone))
	require.False(t, s.Alive("decayer"))

	require.NoError(t, s.Start("decayer"))
	require.True(t, s.Alive("decayer"))
	require.Error(t, s.Start("decayer"), "double start must fail")

	s.Stop()
	require.False(t, s.Alive("decayer"))
	require.Empty(t, s.Reap(), "shutdown exits are not reported")
	require.ErrorIs(t, s.Start("decayer"), ErrStopped)
}

func TestReapReportsFailuresAndPanics(t *testing.T) {
	s := New(context.Background(), logging.Discard())
	defer s.Stop()
	boom := errors.New("boom")
	require.NoError(t, s.Register("harness", func(context.Context) error { return boom }))
	require.NoError(t, s.Register("injector", func(context.Context) error { panic("kaboom") }))

	require.NoError(t, s.Start("harness"))
	require.NoError(t, s.Start("injector"))
	waitFor(t, func() bool { return !s.Alive("harness") && !s.Alive("injector") })

	exits := map[string]Exit{}
	waitFor(t, func() bool {
		for _, e := range s.Reap() {
			exits[e.Name] = e
		}
		return len(exits) == 2
	})
	require.ErrorIs(t, exits["harness"].Err, boom)
	require.False(t, exits["harness"].Panicked)
	require.True(t, exits["injector"].Panicked)
	require.Contains(t, exits["injector"].Err.Error(), "kaboom")
	require.Empty(t, s.Reap())

	require.NoError(t, s.Start("harness"), "exited loops can be restarted")
	waitFor(t, func() bool { return len(s.Reap()) == 1 })
}

func TestRegisterValidation(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()
	require.Error(t, s.Register("", blockUntilDone))
	require.Error(t, s.Register("x", nil))
	require.NoError(t, s.Register("b", blockUntilDone))
	require.NoError(t, s.Register("a", blockUntilDone))
	require.Error(t, s.Register("a", blockUntilDone))
	require.Equal(t, []string{"a", "b"}, s.Names())
	require.Error(t, s.Start("missing"))
}
