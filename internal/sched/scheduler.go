// internal/sched/scheduler.go

package sched

import (
	"io"
	"log/slog"
	"math"

	"github.com/emirpasic/gods/stacks/arraystack"
)

const (
	// MinSleepPeriod is the shortest delay the platform timer is armed with.
	MinSleepPeriod uint64 = 1
	// MaxSleepPeriod means nothing is pending.
	MaxSleepPeriod uint64 = math.MaxUint64
)

// PlatformTimer fires the registered callback after at least the armed delay
// and keeps firing at that period until it is re-armed or stopped. Firings
// must reach the callback on the goroutine that owns the Scheduler.
type PlatformTimer interface {
	SetCallback(fn func(idle bool))
	Start(delay uint64)
	Stop()
}

// Scheduler multiplexes timers and idle handlers onto one goroutine. It is
// not safe for concurrent use: every method, and every task callback, runs on
// the goroutine that drives the platform timer.
type Scheduler struct {
	clock     Clock
	timer     PlatformTimer
	logger    *slog.Logger
	observers []func(StatusEvent)

	// registry
	slots      []slot
	first      int               // head of the active chain
	free       *arraystack.Stack // recycled slot indices
	chainEpoch uint64            // bumped whenever the active chain is relinked
	epoch      uint64            // bumped on teardown

	timerPeriod     uint64 // armed platform timer period
	needsReschedule bool
	lastUpdate      uint64 // tick of the previous dispatch pass
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver adds a consumer for status events. Observers run inline on
// the scheduler goroutine and must not block.
func WithObserver(fn func(StatusEvent)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// New creates a Scheduler reading time from clock and waking up through
// timer. The scheduler registers its entry point with the timer.
func New(clock Clock, timer PlatformTimer, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       clock,
		timer:       timer,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		first:       noSlot,
		free:        arraystack.New(),
		timerPeriod: MaxSleepPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	timer.SetCallback(s.CallbackTaskScheduling)
	return s
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock { return s.clock }

// TimerPeriod returns the period the platform timer is armed with, or
// MaxSleepPeriod when nothing is pending.
func (s *Scheduler) TimerPeriod() uint64 { return s.timerPeriod }

// NeedsReschedule reports whether the next pass is forced to run.
func (s *Scheduler) NeedsReschedule() bool { return s.needsReschedule }

// CallbackTaskScheduling is the platform timer's entry point. A firing always
// forces a full pass.
func (s *Scheduler) CallbackTaskScheduling(idle bool) {
	s.needsReschedule = true
	s.ProcessTaskScheduling(idle)
}

// ProcessTaskScheduling runs one dispatch pass: it invokes at most the single
// most urgent ready task and re-arms the platform timer for the next one.
// Idle tasks are only eligible when idle is true.
func (s *Scheduler) ProcessTaskScheduling(idle bool) {
	now := s.clock.Ticks()
	if !s.needsReschedule && now < s.nextUpdate() {
		return
	}
	s.needsReschedule = false

	var (
		prev           = noSlot
		mostUrgent     = noSlot
		prevMostUrgent = noSlot
		minPeriod      = MaxSleepPeriod
	)

	cur := s.first
	for cur != noSlot {
		sl := &s.slots[cur]
		if sl.inDispatch {
			prev, cur = cur, sl.next
			continue
		}

		if sl.task == nil {
			next := sl.next
			s.recycle(prev, cur)
			cur = next
			continue
		}

		if sl.task.ReadyForSchedule(now, idle) {
			if mostUrgent == noSlot {
				prevMostUrgent, mostUrgent = prev, cur
			} else if sl.task.base().priority.moreUrgent(s.slots[mostUrgent].task.base().priority) {
				// the displaced candidate won't run this pass, so its
				// deadline counts now; the new one is evaluated after the scan
				minPeriod = s.updateMinPeriod(mostUrgent, now, minPeriod)
				prevMostUrgent, mostUrgent = prev, cur
				prev, cur = cur, sl.next
				continue
			}
		}
		minPeriod = s.updateMinPeriod(cur, now, minPeriod)

		prev, cur = cur, sl.next
	}

	if mostUrgent != noSlot {
		assertf(prevMostUrgent != mostUrgent, "slot %d precedes itself", mostUrgent)
		s.slots[mostUrgent].lastTime = now
		minPeriod = s.updateMinPeriod(mostUrgent, now, minPeriod)

		chainEpoch, epoch := s.chainEpoch, s.epoch
		s.invoke(mostUrgent, now, minPeriod)
		if s.epoch != epoch {
			// torn down from inside the callback
			return
		}

		// simple round-robin: nothing to do if it went inactive or is last
		if s.slots[mostUrgent].task != nil {
			s.moveToTail(mostUrgent, prevMostUrgent, prev, chainEpoch)
		}
	}

	if minPeriod != MaxSleepPeriod {
		s.startPlatformTimer(minPeriod)
	} else {
		s.stopPlatformTimer()
	}
	s.timerPeriod = minPeriod
	s.lastUpdate = now
}

func (s *Scheduler) nextUpdate() uint64 {
	if s.lastUpdate > MaxSleepPeriod-s.timerPeriod {
		return MaxSleepPeriod
	}
	return s.lastUpdate + s.timerPeriod
}

// updateMinPeriod asks the task in idx for its contribution unless the
// running minimum already sits at the floor.
func (s *Scheduler) updateMinPeriod(idx int, now, minPeriod uint64) uint64 {
	if minPeriod <= MinSleepPeriod {
		return minPeriod
	}
	sl := &s.slots[idx]
	p := sl.task.UpdateMinPeriod(now, minPeriod)
	assertf(p >= MinSleepPeriod, "task %q returned period %d below the floor", sl.task.base().name, p)
	assertf(p <= minPeriod, "task %q raised the minimum period from %d to %d", sl.task.base().name, minPeriod, p)
	return p
}

// invoke runs the task bound to idx with its re-entrancy flag set. The flag
// is cleared on every exit path, a panicking callback included.
func (s *Scheduler) invoke(idx int, now, minPeriod uint64) {
	sl := &s.slots[idx]
	assertf(sl.task != nil && !sl.inDispatch, "slot %d is not invokable", idx)

	task := sl.task
	b := task.base()
	task.PrepareInvoke()

	epoch := s.epoch
	sl.inDispatch = true
	defer func() {
		if s.epoch == epoch {
			s.slots[idx].inDispatch = false
		}
	}()

	s.emit(StatusEvent{Tick: now, Kind: StatusInvoke, Task: b.name, Priority: b.priority, Slot: idx, Period: minPeriod})
	task.Invoke()
}

// startPlatformTimer arms the platform timer unless it already runs at ms.
func (s *Scheduler) startPlatformTimer(ms uint64) {
	if ms < MinSleepPeriod {
		ms = MinSleepPeriod
	}
	if ms == s.timerPeriod {
		return
	}
	s.timerPeriod = ms
	s.timer.Start(ms)
	s.logger.Debug("platform timer armed", "period_ms", ms)
	s.emit(StatusEvent{Kind: StatusArm, Slot: noSlot, Period: ms})
}

func (s *Scheduler) stopPlatformTimer() {
	if s.timerPeriod == MaxSleepPeriod {
		return
	}
	s.timer.Stop()
	s.logger.Debug("platform timer stopped")
	s.emit(StatusEvent{Kind: StatusDisarm, Slot: noSlot})
}

// Teardown releases every slot, detaches the tasks still bound to one, stops
// the platform timer and resets the cached state. It is idempotent.
func (s *Scheduler) Teardown() {
	s.timer.Stop()

	active := 0
	for cur := s.first; cur != noSlot; cur = s.slots[cur].next {
		if t := s.slots[cur].task; t != nil {
			t.base().ref = slotRef{}
			active++
		}
	}
	released := len(s.slots)

	s.slots = nil
	s.first = noSlot
	s.free.Clear()
	s.chainEpoch++
	s.epoch++
	s.timerPeriod = MaxSleepPeriod
	s.needsReschedule = false
	s.lastUpdate = 0

	if released > 0 {
		s.logger.Info("scheduler torn down", "detached", active, "slots", released)
	}
	s.emit(StatusEvent{Kind: StatusTeardown, Slot: noSlot})
}

func (s *Scheduler) emit(ev StatusEvent) {
	if len(s.observers) == 0 {
		return
	}
	if ev.Tick == 0 {
		ev.Tick = s.clock.Ticks()
	}
	for _, fn := range s.observers {
		fn(ev)
	}
}
