// Package loop owns a Scheduler on a single goroutine. Platform timer
// firings and work posted from other goroutines are marshaled onto that
// goroutine, so the scheduler itself needs no locking.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"vsched/internal/sched"
)

var (
	// ErrLoopClosed is returned by Post once Run has returned.
	ErrLoopClosed = errors.New("loop: closed")
	// ErrLoopRunning is returned when Run is called twice.
	ErrLoopRunning = errors.New("loop: already running")
	// ErrTaskPanic wraps a panic that escaped a task or posted function.
	ErrTaskPanic = errors.New("loop: task panicked")
)

// Loop drives one Scheduler.
type Loop struct {
	sched  *sched.Scheduler
	timer  *TickTimer
	posted chan func()
	done   chan struct{}
	logger *slog.Logger
	onStop []func(*sched.Scheduler)

	running atomic.Bool
}

// New creates a loop with a fresh Scheduler bound to a TickTimer.
func New(clock sched.Clock, logger *slog.Logger, opts ...sched.Option) *Loop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timer := NewTickTimer()
	opts = append([]sched.Option{sched.WithLogger(logger)}, opts...)
	return &Loop{
		sched:  sched.New(clock, timer, opts...),
		timer:  timer,
		posted: make(chan func(), 64),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Scheduler returns the scheduler. It may only be touched from the loop
// goroutine, i.e. before Run or inside posted functions and task callbacks.
func (l *Loop) Scheduler() *sched.Scheduler { return l.sched }

// Timer returns the platform timer backing the scheduler.
func (l *Loop) Timer() *TickTimer { return l.timer }

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.posted <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted work and timer firings until ctx is done or a task
// panics. A firing is an idle opportunity when no posted work is waiting.
// The scheduler is torn down before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.done)
	defer l.sched.Teardown()

	l.logger.Info("loop started")
	for {
		var err error
		select {
		case <-ctx.Done():
			for _, fn := range l.onStop {
				fn(l.sched)
			}
			l.logger.Info("loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case fn := <-l.posted:
			err = l.guard(fn)
		case <-l.timer.C:
			idle := len(l.posted) == 0
			err = l.guard(func() { l.timer.Fire(idle) })
		}
		if err != nil {
			l.logger.Error("loop aborted", "err", err)
			return err
		}
	}
}

// OnStop registers fn to run on the loop goroutine when ctx ends, before the
// scheduler is torn down. Register hooks before calling Run.
func (l *Loop) OnStop(fn func(*sched.Scheduler)) {
	l.onStop = append(l.onStop, fn)
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrTaskPanic, r, debug.Stack())
		}
	}()
	fn()
	return nil
}
