// internal/loop/ticktimer.go

package loop

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// maxDelay is the longest delay, in milliseconds, a time.Duration can hold.
const maxDelay = uint64(math.MaxInt64 / int64(time.Millisecond))

// TickTimer is a goroutine-backed platform timer. While armed it emits on C
// at the armed period; the loop goroutine turns each emission into a call to
// the registered callback via Fire, so the callback never runs on the ticker
// goroutine.
type TickTimer struct {
	C chan struct{}

	mu       sync.Mutex
	stop     chan struct{}
	period   time.Duration
	callback func(idle bool)
	arms     atomic.Int64
	fired    atomic.Int64
}

// NewTickTimer creates a disarmed timer. Emissions coalesce: at most one is
// pending at a time.
func NewTickTimer() *TickTimer {
	return &TickTimer{C: make(chan struct{}, 1)}
}

// SetCallback registers the entry point Fire calls.
func (t *TickTimer) SetCallback(fn func(idle bool)) {
	t.mu.Lock()
	t.callback = fn
	t.mu.Unlock()
}

// Start (re)arms the timer to emit every delay milliseconds. The delay is
// clamped to [1, maxDelay].
func (t *TickTimer) Start(delay uint64) {
	switch {
	case delay == 0:
		delay = 1
	case delay > maxDelay:
		delay = maxDelay
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.disarmLocked()
	t.period = time.Duration(delay) * time.Millisecond
	t.stop = make(chan struct{})
	t.arms.Add(1)

	ticker := time.NewTicker(t.period)
	go func(stop <-chan struct{}) {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case t.C <- struct{}{}:
				default:
				}
			case <-stop:
				return
			}
		}
	}(t.stop)
}

// Stop disarms the timer. A pending emission may still be delivered.
func (t *TickTimer) Stop() {
	t.mu.Lock()
	t.disarmLocked()
	t.mu.Unlock()
}

func (t *TickTimer) disarmLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.period = 0
}

// Fire calls the registered callback. The loop calls it after receiving
// from C.
func (t *TickTimer) Fire(idle bool) {
	t.mu.Lock()
	cb := t.callback
	t.mu.Unlock()
	t.fired.Add(1)
	if cb != nil {
		cb(idle)
	}
}

// Armed reports whether the timer currently emits.
func (t *TickTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Period returns the armed period, or zero when disarmed.
func (t *TickTimer) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// Arms returns how many times the timer was armed.
func (t *TickTimer) Arms() int64 { return t.arms.Load() }

// Fired returns how many emissions reached the callback.
func (t *TickTimer) Fired() int64 { return t.fired.Load() }
