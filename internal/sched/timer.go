// internal/sched/timer.go

package sched

// Timer fires once its timeout has elapsed since it was started or last
// invoked. A plain Timer is one-shot: its handler has to Start it again to
// keep it going.
type Timer struct {
	Task
	timeout uint64
	handler func(*Timer)
}

// NewTimer creates an inactive timer with the minimum timeout and
// PriorityDefault.
func NewTimer(s *Scheduler, name string) *Timer {
	t := &Timer{timeout: MinSleepPeriod}
	t.init(s, t, name, PriorityDefault)
	return t
}

// SetInvokeHandler sets the function called when the timer fires.
func (t *Timer) SetInvokeHandler(fn func(*Timer)) { t.handler = fn }

// HasInvokeHandler reports whether a handler is set.
func (t *Timer) HasInvokeHandler() bool { return t.handler != nil }

// Timeout returns the timeout in milliseconds.
func (t *Timer) Timeout() uint64 { return t.timeout }

// SetTimeout changes the timeout. An active timer whose new timeout is
// shorter than the armed platform period re-arms the platform timer right away.
func (t *Timer) SetTimeout(ms uint64) {
	if ms < MinSleepPeriod {
		ms = MinSleepPeriod
	}
	t.timeout = ms
	if t.IsActive() && t.timeout < t.sched.timerPeriod {
		t.sched.startPlatformTimer(t.timeout)
	}
}

// Start activates the timer, or restarts its countdown if already active.
func (t *Timer) Start() {
	t.Task.Start()
	if t.timeout < t.sched.timerPeriod {
		t.sched.startPlatformTimer(t.timeout)
	}
}

// Assign copies priority, timeout and handler from src and mirrors its
// active state.
func (t *Timer) Assign(src *Timer) {
	t.timeout = src.timeout
	t.handler = src.handler
	t.assign(&src.Task, t.Start)
}

// deadline returns the tick the timer is due at, saturated at
// MaxSleepPeriod. A saturated deadline is never reached.
func (t *Timer) deadline() uint64 {
	last := t.lastInvokedAt()
	if t.timeout > MaxSleepPeriod-last {
		return MaxSleepPeriod
	}
	return last + t.timeout
}

// ReadyForSchedule reports whether the timeout has elapsed.
func (t *Timer) ReadyForSchedule(now uint64, _ bool) bool {
	wakeup := t.deadline()
	return wakeup != MaxSleepPeriod && wakeup <= now
}

// UpdateMinPeriod folds the time left until the timer is due into minPeriod.
func (t *Timer) UpdateMinPeriod(now, minPeriod uint64) uint64 {
	wakeup := t.deadline()
	if wakeup == MaxSleepPeriod {
		return minPeriod
	}
	if wakeup <= now {
		return MinSleepPeriod
	}
	if sleep := wakeup - now; sleep < minPeriod {
		return sleep
	}
	return minPeriod
}

// Invoke calls the handler.
func (t *Timer) Invoke() {
	if t.handler != nil {
		t.handler(t)
	}
}

// AutoTimer re-emits itself at its interval until stopped.
type AutoTimer struct {
	Timer
}

// NewAutoTimer creates an inactive auto timer with the minimum timeout.
func NewAutoTimer(s *Scheduler, name string) *AutoTimer {
	a := &AutoTimer{Timer: Timer{timeout: MinSleepPeriod}}
	a.init(s, a, name, PriorityDefault)
	return a
}

// PrepareInvoke keeps the slot bound, so the timer stays active.
func (a *AutoTimer) PrepareInvoke() {}

// Assign copies priority, timeout and handler from src and mirrors its
// active state.
func (a *AutoTimer) Assign(src *AutoTimer) {
	a.Timer.Assign(&src.Timer)
}
