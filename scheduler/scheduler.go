// Package scheduler coalesces render requests into frame ticks.
//
// A Scheduler keeps at most one pending handle per key: scheduling again
// replaces the earlier handle, so only the most recent request runs. A Loop
// owns the goroutine that drives the Scheduler and accepts work from other
// goroutines.
package scheduler

import (
	"fmt"

	"github.com/vcrobe/cove/console"
)

// Task is a unit of work run on the loop goroutine.
type Task func()

type handle struct {
	key  string
	fn   Task
	dead bool
}

// Scheduler is not safe for concurrent use. Every method must be called
// from the loop goroutine.
type Scheduler struct {
	pending  map[string]*handle
	queue    []*handle
	deferred []Task
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{pending: make(map[string]*handle)}
}

// Schedule arranges for fn to run on the next tick under key. A handle
// already pending for key is cancelled.
func (s *Scheduler) Schedule(key string, fn Task) {
	s.Cancel(key)
	h := &handle{key: key, fn: fn}
	s.pending[key] = h
	s.queue = append(s.queue, h)
}

// Cancel drops the pending handle for key and reports whether there was one.
func (s *Scheduler) Cancel(key string) bool {
	h, ok := s.pending[key]
	if !ok {
		return false
	}
	h.dead = true
	delete(s.pending, key)
	return true
}

// Pending reports whether key has a handle waiting for the next tick.
func (s *Scheduler) Pending(key string) bool {
	_, ok := s.pending[key]
	return ok
}

// Defer queues fn to run after the renders of the next tick. Work deferred
// while a tick is running waits for the tick after it.
func (s *Scheduler) Defer(fn Task) {
	s.deferred = append(s.deferred, fn)
}

// Idle reports whether nothing is scheduled or deferred.
func (s *Scheduler) Idle() bool {
	return len(s.pending) == 0 && len(s.deferred) == 0
}

// Tick runs every handle that was pending when the tick started, then the
// deferred callbacks queued before it started. It returns the number of
// handles run.
func (s *Scheduler) Tick() int {
	queue, deferred := s.queue, s.deferred
	s.queue, s.deferred = nil, nil

	ran := 0
	for _, h := range queue {
		if h.dead {
			continue
		}
		h.dead = true
		delete(s.pending, h.key)
		safeRun(h.key, h.fn)
		ran++
	}
	for _, fn := range deferred {
		safeRun("deferred", fn)
	}
	return ran
}

// safeRun keeps one failing task from taking down the loop.
func safeRun(what string, fn Task) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			console.L().Error().Str("task", what).Str("panic", fmt.Sprint(r)).Msg("scheduler: task panicked")
		}
	}()
	fn()
}
