// internal/sched/idle.go

package sched

// Idle runs only when the loop signals an idle opportunity. Like a plain
// Timer it is one-shot.
type Idle struct {
	Task
	handler func(*Idle)
}

// NewIdle creates an inactive idle handler with PriorityDefaultIdle.
func NewIdle(s *Scheduler, name string) *Idle {
	i := &Idle{}
	i.init(s, i, name, PriorityDefaultIdle)
	return i
}

// SetIdleHandler sets the function called when the idle runs.
func (i *Idle) SetIdleHandler(fn func(*Idle)) { i.handler = fn }

// Start activates the idle and asks the platform timer for a prompt wake-up.
func (i *Idle) Start() {
	i.Task.Start()
	i.sched.startPlatformTimer(MinSleepPeriod)
}

// Assign copies priority and handler from src and mirrors its active state.
func (i *Idle) Assign(src *Idle) {
	i.handler = src.handler
	i.assign(&src.Task, i.Start)
}

// ReadyForSchedule is true only during an idle pass.
func (i *Idle) ReadyForSchedule(_ uint64, idle bool) bool { return idle }

// UpdateMinPeriod always asks for the next chance as soon as possible.
func (i *Idle) UpdateMinPeriod(_, _ uint64) uint64 { return MinSleepPeriod }

// Invoke calls the handler.
func (i *Idle) Invoke() {
	if i.handler != nil {
		i.handler(i)
	}
}
