package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// TaskInfo describes one active task at the time of a snapshot.
type TaskInfo struct {
	Name          string
	Priority      Priority
	Slot          int
	Position      int // position in the active chain
	LastInvokedAt uint64
	InDispatch    bool
}

// Snapshot lists the active tasks, most urgent first. Tasks of equal
// priority keep their chain order, which is the order the next pass would
// prefer them in.
func (s *Scheduler) Snapshot() []TaskInfo {
	tree := redblacktree.NewWith(cmpSnapshotKey)
	pos := 0
	for cur := s.first; cur != noSlot; cur = s.slots[cur].next {
		sl := &s.slots[cur]
		if sl.task == nil {
			pos++
			continue
		}
		b := sl.task.base()
		tree.Put(snapshotKey{priority: b.priority, position: pos}, TaskInfo{
			Name:          b.name,
			Priority:      b.priority,
			Slot:          cur,
			Position:      pos,
			LastInvokedAt: sl.lastTime,
			InDispatch:    sl.inDispatch,
		})
		pos++
	}

	out := make([]TaskInfo, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(TaskInfo))
	}
	return out
}

// snapshotKey is used as a key in the red-black tree.
type snapshotKey struct {
	priority Priority
	position int
}

func cmpSnapshotKey(a, b any) int {
	ka, kb := a.(snapshotKey), b.(snapshotKey)
	switch {
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.position < kb.position:
		return -1
	case ka.position > kb.position:
		return 1
	default:
		return 0
	}
}
