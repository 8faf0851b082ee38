package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLoopAlreadyRunning is returned when Run or Settle is called while
	// the loop is already being driven.
	ErrLoopAlreadyRunning = errors.New("scheduler: loop is already running")

	// ErrLoopTerminated is returned when work is posted to a stopped loop.
	ErrLoopTerminated = errors.New("scheduler: loop has been terminated")

	// ErrNotSettled is returned by Settle when work keeps rescheduling
	// itself past the tick limit.
	ErrNotSettled = errors.New("scheduler: loop did not settle")
)

// DefaultFrameInterval is the tick period used by Run.
const DefaultFrameInterval = 16 * time.Millisecond

// DefaultMaxSettleTicks bounds Settle.
const DefaultMaxSettleTicks = 1000

// Loop owns the goroutine that mutates instances, stores and trees.
// Other goroutines hand it work through Post and Go.
type Loop struct {
	sched    *Scheduler
	interval time.Duration

	// MaxSettleTicks is the number of ticks Settle runs before giving up.
	MaxSettleTicks int

	// OnTick, when set, is called on the loop goroutine after every tick
	// with the number of handles it ran.
	OnTick func(ran int)

	ingressMu sync.Mutex
	ingress   []Task
	stopped   bool

	wake     chan struct{}
	inflight atomic.Int64
	driving  atomic.Bool
}

// NewLoop returns a loop that ticks every interval while running. A
// non-positive interval selects DefaultFrameInterval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		sched:          New(),
		interval:       interval,
		MaxSettleTicks: DefaultMaxSettleTicks,
		wake:           make(chan struct{}, 1),
	}
}

// Scheduler returns the scheduler driven by l. Use it only from the loop
// goroutine.
func (l *Loop) Scheduler() *Scheduler { return l.sched }

// Post queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (l *Loop) Post(fn Task) error {
	l.ingressMu.Lock()
	if l.stopped {
		l.ingressMu.Unlock()
		return ErrLoopTerminated
	}
	l.ingress = append(l.ingress, fn)
	l.ingressMu.Unlock()
	l.signal()
	return nil
}

// Go runs work on a new goroutine and posts the task it returns back to
// the loop. Settle waits for work started this way.
func (l *Loop) Go(work func() Task) {
	l.inflight.Add(1)
	go func() {
		defer func() {
			l.inflight.Add(-1)
			l.signal()
		}()
		if done := work(); done != nil {
			_ = l.Post(done)
		}
	}()
}

// Stop rejects further posts. Work already queued is dropped.
func (l *Loop) Stop() {
	l.ingressMu.Lock()
	l.stopped = true
	l.ingress = nil
	l.ingressMu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain runs every posted task and reports whether there were any.
func (l *Loop) drain() bool {
	l.ingressMu.Lock()
	batch := l.ingress
	l.ingress = nil
	l.ingressMu.Unlock()
	for _, fn := range batch {
		safeRun("posted", fn)
	}
	return len(batch) > 0
}

func (l *Loop) tick() {
	ran := l.sched.Tick()
	if l.OnTick != nil {
		l.OnTick(ran)
	}
}

// Run drives the loop until ctx is done or Stop is called: posted work
// runs as it arrives and the scheduler ticks once per frame interval.
func (l *Loop) Run(ctx context.Context) error {
	if !l.driving.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer l.driving.Store(false)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			if l.isStopped() {
				return nil
			}
			l.drain()
		case <-ticker.C:
			l.drain()
			if !l.sched.Idle() {
				l.tick()
			}
		}
	}
}

func (l *Loop) isStopped() bool {
	l.ingressMu.Lock()
	defer l.ingressMu.Unlock()
	return l.stopped
}

// Settle drives the loop on the calling goroutine until no posted work,
// goroutine started by Go, scheduled render or deferred callback remains.
// Ticks run back to back rather than on the frame interval.
func (l *Loop) Settle(ctx context.Context) error {
	if !l.driving.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer l.driving.Store(false)

	ticks := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.drain()
		if !l.sched.Idle() {
			if ticks >= l.MaxSettleTicks {
				return ErrNotSettled
			}
			l.tick()
			ticks++
			continue
		}
		if l.inflight.Load() == 0 && !l.hasIngress() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) hasIngress() bool {
	l.ingressMu.Lock()
	defer l.ingressMu.Unlock()
	return len(l.ingress) > 0
}
