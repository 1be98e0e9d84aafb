// internal/sched/priority.go

package sched

// Priority orders tasks by urgency. A lower value is more urgent.
type Priority int

const (
	PriorityHighest     Priority = iota // should run very fast
	PriorityDefault                     // default timer priority
	PriorityHighIdle                    // idle work that must run before drawing
	PriorityResize                      // resize runs before repaint, so we won't paint twice
	PriorityRepaint                     // all repaint work
	PriorityDefaultIdle                 // default idle priority
	PriorityLowest
)

func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "Highest"
	case PriorityDefault:
		return "Default"
	case PriorityHighIdle:
		return "HighIdle"
	case PriorityResize:
		return "Resize"
	case PriorityRepaint:
		return "Repaint"
	case PriorityDefaultIdle:
		return "DefaultIdle"
	case PriorityLowest:
		return "Lowest"
	default:
		return "Unknown"
	}
}

// moreUrgent reports whether p must run before q.
func (p Priority) moreUrgent(q Priority) bool { return p < q }
