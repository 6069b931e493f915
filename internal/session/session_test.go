package session_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/runner"
	"github.com/qcjiangqianchen/bolt.diy/internal/session"
)

type nopRuntime struct{}

func (nopRuntime) WriteFile(context.Context, string, string) error { return nil }

func (nopRuntime) Run(context.Context, string, io.Writer) (int, error) { return 0, nil }

func (nopRuntime) Start(context.Context, string, io.Writer) (runner.Process, error) {
	return nil, errors.New("not supported")
}

func newManager(t *testing.T) (*session.Manager, *int) {
	t.Helper()
	created := 0
	m := session.NewManager(func(string) (*runner.Runner, error) {
		created++
		return runner.New(nopRuntime{}, log.NewNop()), nil
	}, log.NewNop())
	return m, &created
}

func TestManager_ReusesSessionPerID(t *testing.T) {
	t.Parallel()

	m, created := newManager(t)

	first, err := m.Get("sess-1")
	require.NoError(t, err)
	second, err := m.Get("sess-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first.Runner, second.Runner)
	assert.Same(t, first.Artifacts, second.Artifacts)
	assert.Equal(t, 1, *created)

	other, err := m.Get("sess-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, *created)
}

func TestManager_EndDropsSession(t *testing.T) {
	t.Parallel()

	m, created := newManager(t)

	first, err := m.Get("sess-1")
	require.NoError(t, err)
	require.NoError(t, m.End("sess-1"))

	replacement, err := m.Get("sess-1")
	require.NoError(t, err)
	assert.NotSame(t, first, replacement)
	assert.Equal(t, 2, *created)
}

func TestManager_EndUnknownIsNoOp(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t)
	assert.NoError(t, m.End("never-seen"))
}

func TestManager_FactoryErrorIsNotCached(t *testing.T) {
	t.Parallel()

	fail := true
	m := session.NewManager(func(string) (*runner.Runner, error) {
		if fail {
			return nil, errors.New("workspace unavailable")
		}
		return runner.New(nopRuntime{}, log.NewNop()), nil
	}, log.NewNop())

	_, err := m.Get("sess-1")
	require.Error(t, err)

	fail = false
	s, err := m.Get("sess-1")
	require.NoError(t, err)
	assert.NotNil(t, s.Runner)
}

func TestManager_CloseEndsAll(t *testing.T) {
	t.Parallel()

	m, created := newManager(t)
	_, err := m.Get("a")
	require.NoError(t, err)
	_, err = m.Get("b")
	require.NoError(t, err)

	require.NoError(t, m.Close())

	_, err = m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 3, *created)
}
