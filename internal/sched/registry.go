// internal/sched/registry.go

package sched

import "fmt"

const noSlot = -1

// slot is the registry's per-task bookkeeping node. Slots live in an arena
// owned by the Scheduler and are chained by index.
type slot struct {
	next       int      // next slot in the active chain, noSlot at the tail
	gen        uint32   // bumped every time the slot is handed out again
	task       Runnable // nil once the task detached; the slot awaits recycling
	inDispatch bool     // set while the task's callback runs
	lastTime   uint64   // tick of the last activation or invocation
}

// resolve returns the slot ref points at, provided it is still bound to t.
func (s *Scheduler) resolve(ref slotRef, t *Task) (*slot, bool) {
	if s == nil || ref.gen == 0 || ref.index < 0 || ref.index >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[ref.index]
	if sl.gen != ref.gen || sl.task == nil || sl.task.base() != t {
		return nil, false
	}
	return sl, true
}

// register links a fresh slot for t at the front of the active chain, or
// refreshes the timestamp if t already owns one.
func (s *Scheduler) register(t *Task) {
	now := s.clock.Ticks()
	idx := t.ref.index
	if _, ok := s.resolve(t.ref, t); !ok {
		idx = s.allocSlot()
		sl := &s.slots[idx]
		sl.task = t.self
		sl.inDispatch = false
		sl.next = s.first
		s.first = idx
		s.chainEpoch++
		t.ref = slotRef{index: idx, gen: sl.gen}
	}
	s.slots[idx].lastTime = now
	s.needsReschedule = true
	s.emit(StatusEvent{Kind: StatusStart, Task: t.name, Priority: t.priority, Slot: idx})
}

// unbind clears the back-reference of the slot ref points at. List linkage
// is left alone so a pass walking the chain is never disturbed.
func (s *Scheduler) unbind(ref slotRef) {
	if ref.index < 0 || ref.index >= len(s.slots) || s.slots[ref.index].gen != ref.gen {
		return
	}
	s.slots[ref.index].task = nil
}

// allocSlot reuses a recycled slot when one is available.
func (s *Scheduler) allocSlot() int {
	if v, ok := s.free.Pop(); ok {
		idx := v.(int)
		sl := &s.slots[idx]
		assertf(sl.task == nil, "free slot %d still bound", idx)
		sl.gen++
		if sl.gen == 0 {
			sl.gen = 1
		}
		return idx
	}
	s.slots = append(s.slots, slot{next: noSlot, gen: 1})
	return len(s.slots) - 1
}

// recycle splices idx out of the active chain and pushes it on the free list.
// prev is the slot before idx, or noSlot if idx is the head.
func (s *Scheduler) recycle(prev, idx int) {
	sl := &s.slots[idx]
	assertf(sl.task == nil, "recycling bound slot %d", idx)
	if prev == noSlot {
		s.first = sl.next
	} else {
		s.slots[prev].next = sl.next
	}
	sl.next = noSlot
	sl.inDispatch = false
	s.free.Push(idx)
	s.chainEpoch++
	s.emit(StatusEvent{Kind: StatusRecycle, Slot: idx})
}

// moveToTail gives equal-priority siblings a turn after idx ran. prev and
// last are the scan's view of the chain; they are trusted only if nothing
// relinked the chain since the scan.
func (s *Scheduler) moveToTail(idx, prev, last int, epoch uint64) {
	if s.slots[idx].next == noSlot {
		return
	}
	if epoch != s.chainEpoch {
		prev, last = noSlot, noSlot
		for cur := s.first; cur != noSlot; cur = s.slots[cur].next {
			if s.slots[cur].next == idx {
				prev = cur
			}
			last = cur
		}
		assertf(prev != noSlot || s.first == idx, "slot %d not in active chain", idx)
	}
	if prev == noSlot {
		s.first = s.slots[idx].next
	} else {
		s.slots[prev].next = s.slots[idx].next
	}
	s.slots[last].next = idx
	s.slots[idx].next = noSlot
	s.chainEpoch++
}

// ActiveCount returns the number of slots bound to a task.
func (s *Scheduler) ActiveCount() int {
	n := 0
	for cur := s.first; cur != noSlot; cur = s.slots[cur].next {
		if s.slots[cur].task != nil {
			n++
		}
	}
	return n
}

// ChainLen returns the length of the active chain, detached slots included.
func (s *Scheduler) ChainLen() int {
	n := 0
	for cur := s.first; cur != noSlot; cur = s.slots[cur].next {
		n++
	}
	return n
}

// FreeCount returns the number of recycled slots waiting for reuse.
func (s *Scheduler) FreeCount() int { return s.free.Size() }

// SlotCount returns the number of slots the arena holds.
func (s *Scheduler) SlotCount() int { return len(s.slots) }

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("sched: " + fmt.Sprintf(format, args...))
	}
}
