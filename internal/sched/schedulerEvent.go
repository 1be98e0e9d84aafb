// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusStart    StatusKind = iota // task got (or refreshed) a slot
	StatusStop                       // task stopped by its owner
	StatusDetach                     // one-shot task released its slot ahead of its callback
	StatusInvoke                     // dispatch pass invoked a task
	StatusRecycle                    // a detached slot was moved to the free list
	StatusArm                        // platform timer (re)armed
	StatusDisarm                     // platform timer stopped, nothing pending
	StatusTeardown                   // registry released
)

// StatusEvent is emitted on key registry and dispatch actions.
// Task and Priority are zero for events that are not about a single task.
type StatusEvent struct {
	Tick     uint64
	Kind     StatusKind
	Task     string
	Priority Priority
	Slot     int
	Period   uint64 // armed period for StatusArm, running minimum for StatusInvoke
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusStart:
		return "Start"
	case StatusStop:
		return "Stop"
	case StatusDetach:
		return "Detach"
	case StatusInvoke:
		return "Invoke"
	case StatusRecycle:
		return "Recycle"
	case StatusArm:
		return "Arm"
	case StatusDisarm:
		return "Disarm"
	case StatusTeardown:
		return "Teardown"
	default:
		return "Unknown"
	}
}
