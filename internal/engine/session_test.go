package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/scheduler"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(config.Default(), quietLogger())
	require.NoError(t, err)
	return s
}

func TestSessionStepAndTasks(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddTask(inboundTask(1, 0)))
	assert.ErrorIs(t, s.AddTask(inboundTask(1, 0)), scheduler.ErrDuplicateTask)

	st := s.Step(0.1)
	assert.InDelta(t, 0.1, st.Clock, 1e-9)
	assert.Equal(t, s.ID, st.SessionID)
	assert.False(t, st.Running)
	assert.Len(t, st.Assigned, 1)

	pending, assigned, completed := s.Tasks()
	assert.Empty(t, pending)
	assert.Len(t, assigned, 1)
	assert.Empty(t, completed)
	assert.NotEmpty(t, s.DeviceEvents())
	assert.NotEmpty(t, s.SpeedEvents())
}

func TestSessionStartPause(t *testing.T) {
	s := newSession(t)
	require.Error(t, s.Start(context.Background(), 0))

	require.NoError(t, s.Start(context.Background(), time.Millisecond))
	assert.True(t, s.Running())
	require.Eventually(t, func() bool { return s.State().Clock > 0 }, 2*time.Second, 5*time.Millisecond)

	s.Pause()
	assert.False(t, s.Running())
	paused := s.State().Clock
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, s.State().Clock)

	s.Pause()
	assert.False(t, s.Running())
}

func TestSessionStopsWithContext(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, time.Millisecond))
	require.Eventually(t, func() bool { return s.State().Clock > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.State().Running)
	stopped := s.State().Clock
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, s.State().Clock)
	s.Pause()
}

func TestSessionRestartKeepsRunning(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Start(context.Background(), time.Millisecond))
	require.NoError(t, s.Start(context.Background(), 2*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.Running(), "the replaced loop does not pause the new one")
	assert.Equal(t, 0.002, s.State().Interval)
	s.Pause()
}
