package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestDailySpec(t *testing.T) {
	spec, err := DailySpec("07:30")
	require.NoError(t, err)
	assert.Equal(t, "30 7 * * *", spec)

	spec, err = DailySpec(" 23:05 ")
	require.NoError(t, err)
	assert.Equal(t, "5 23 * * *", spec)

	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, err := DailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	_, err = New(runnerFunc(func(context.Context) error { return nil }), Options{Spec: "not a cron"})
	assert.Error(t, err)

	s, err := New(runnerFunc(func(context.Context) error { return nil }), Options{})
	require.NoError(t, err)
	assert.True(t, s.Snapshot().NextRunAt.IsZero())
}

func TestTrackRecordsState(t *testing.T) {
	s, err := New(runnerFunc(func(context.Context) error { return nil }), Options{Spec: "0 6 * * *"})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Track(context.Background(), "manual", func(context.Context) error {
			close(started)
			<-release
			return errors.New("adapter exploded")
		})
	}()

	<-started
	running := s.Snapshot()
	assert.True(t, running.Running)
	assert.Equal(t, "manual", running.CurrentTrigger)
	assert.Equal(t, "0 6 * * *", running.Schedule)

	close(release)
	require.EqualError(t, <-done, "adapter exploded")

	after := s.Snapshot()
	assert.False(t, after.Running)
	assert.Empty(t, after.CurrentTrigger)
	assert.Equal(t, "manual", after.LastTrigger)
	assert.Equal(t, "adapter exploded", after.LastError)
	assert.False(t, after.LastCompletedAt.IsZero())

	require.NoError(t, s.Track(context.Background(), "manual", func(context.Context) error { return nil }))
	assert.Empty(t, s.Snapshot().LastError)
}

func TestManualRunsOverlap(t *testing.T) {
	s, err := New(runnerFunc(func(context.Context) error { return nil }), Options{})
	require.NoError(t, err)

	release := make(chan struct{})
	first := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Track(context.Background(), "manual", func(context.Context) error {
			close(first)
			<-release
			return nil
		})
	}()
	<-first

	// a second run proceeds while the first is still active
	require.NoError(t, s.Track(context.Background(), "manual", func(context.Context) error { return nil }))
	assert.True(t, s.Snapshot().Running)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Snapshot().Running)
}

func TestStartSchedulesNextRun(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	s, err := New(runnerFunc(func(context.Context) error { return nil }), Options{Spec: "0 6 * * *", Location: loc})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	next := s.Snapshot().NextRunAt
	require.False(t, next.IsZero())
	assert.Equal(t, 6, next.In(loc).Hour())
	assert.Equal(t, 0, next.In(loc).Minute())
	assert.True(t, next.After(time.Now()))
}
