package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSchedule_LastWriterWins schedules one key repeatedly within a tick.
func TestSchedule_LastWriterWins(t *testing.T) {
	s := New()
	var ran []int
	for i := range 5 {
		s.Schedule("a", func() { ran = append(ran, i) })
	}
	require.True(t, s.Pending("a"))

	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, []int{4}, ran)
	assert.False(t, s.Pending("a"))
	assert.True(t, s.Idle())
}

func TestSchedule_KeysAreIndependent(t *testing.T) {
	s := New()
	var ran []string
	s.Schedule("a", func() { ran = append(ran, "a") })
	s.Schedule("b", func() { ran = append(ran, "b") })
	s.Schedule("a", func() { ran = append(ran, "a2") })

	assert.Equal(t, 2, s.Tick())
	assert.Equal(t, []string{"b", "a2"}, ran)
}

func TestCancel(t *testing.T) {
	s := New()
	called := false
	s.Schedule("a", func() { called = true })

	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))
	assert.Equal(t, 0, s.Tick())
	assert.False(t, called)
}

// TestTick_RescheduleRunsNextTick checks that work scheduled by a running
// handle waits for the following tick.
func TestTick_RescheduleRunsNextTick(t *testing.T) {
	s := New()
	count := 0
	var fn Task
	fn = func() {
		count++
		if count < 3 {
			s.Schedule("a", fn)
		}
	}
	s.Schedule("a", fn)

	s.Tick()
	assert.Equal(t, 1, count)
	s.Tick()
	assert.Equal(t, 2, count)
	s.Tick()
	assert.Equal(t, 3, count)
	assert.True(t, s.Idle())
}

// TestDefer_RunsAfterRendersOfNextTick defers from inside a render.
func TestDefer_RunsAfterRendersOfNextTick(t *testing.T) {
	s := New()
	var order []string
	s.Schedule("a", func() {
		order = append(order, "render")
		s.Defer(func() { order = append(order, "deferred") })
	})

	s.Tick()
	assert.Equal(t, []string{"render"}, order)
	s.Tick()
	assert.Equal(t, []string{"render", "deferred"}, order)
}

func TestTick_RecoversPanics(t *testing.T) {
	s := New()
	ran := false
	s.Schedule("a", func() { panic("boom") })
	s.Schedule("b", func() { ran = true })

	assert.NotPanics(t, func() { s.Tick() })
	assert.True(t, ran)
}

func TestLoop_SettleWaitsForBackgroundWork(t *testing.T) {
	l := NewLoop(0)
	var got []string
	l.Go(func() Task {
		time.Sleep(10 * time.Millisecond)
		return func() {
			got = append(got, "loaded")
			l.Scheduler().Schedule("x", func() { got = append(got, "rendered") })
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Settle(ctx))
	assert.Equal(t, []string{"loaded", "rendered"}, got)
}

func TestLoop_PostFromManyGoroutines(t *testing.T) {
	l := NewLoop(0)
	count := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Post(func() { count++ }))
		}()
	}
	wg.Wait()

	require.NoError(t, l.Settle(context.Background()))
	assert.Equal(t, 50, count)
}

func TestLoop_SettleGivesUp(t *testing.T) {
	l := NewLoop(0)
	l.MaxSettleTicks = 10
	var fn Task
	fn = func() { l.Scheduler().Schedule("spin", fn) }
	l.Scheduler().Schedule("spin", fn)

	assert.ErrorIs(t, l.Settle(context.Background()), ErrNotSettled)
}

func TestLoop_RunTicksAndStops(t *testing.T) {
	l := NewLoop(time.Millisecond)
	ticked := make(chan int, 1)
	l.OnTick = func(ran int) {
		select {
		case ticked <- ran:
		default:
		}
	}
	require.NoError(t, l.Post(func() { l.Scheduler().Schedule("a", func() {}) }))

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case ran := <-ticked:
		assert.Equal(t, 1, ran)
	case <-time.After(5 * time.Second):
		t.Fatal("loop never ticked")
	}

	l.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.ErrorIs(t, l.Post(func() {}), ErrLoopTerminated)
}
