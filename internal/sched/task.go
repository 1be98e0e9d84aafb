package sched

// Runnable is what the dispatch pass drives. Concrete tasks embed *Task and
// implement the readiness and period hooks; PrepareInvoke is inherited from
// Task unless the kind needs to survive its own invocation.
type Runnable interface {
	// ReadyForSchedule reports whether the task is due. It must be cheap and
	// free of side effects.
	ReadyForSchedule(now uint64, idle bool) bool
	// UpdateMinPeriod folds the task's own deadline into minPeriod and returns
	// the result. It never returns more than minPeriod nor less than
	// MinSleepPeriod.
	UpdateMinPeriod(now, minPeriod uint64) uint64
	// PrepareInvoke runs right before Invoke. The default detaches the task
	// so it fires once unless its callback starts it again.
	PrepareInvoke()
	Invoke()

	base() *Task
}

// slotRef is a generation-checked handle into the scheduler's slot arena.
// The zero value refers to no slot; generation 0 is never issued.
type slotRef struct {
	index int
	gen   uint32
}

// Task carries the bookkeeping shared by every schedulable kind. A Task must
// not be copied once created; use the kind's Assign method instead.
type Task struct {
	sched    *Scheduler
	self     Runnable
	ref      slotRef
	name     string
	priority Priority
}

func (t *Task) base() *Task { return t }

// init binds the task to its scheduler and to the outer value the dispatch
// pass must call. Every constructor goes through here.
func (t *Task) init(s *Scheduler, self Runnable, name string, prio Priority) {
	if s == nil {
		panic("sched: task created without a scheduler")
	}
	t.sched = s
	t.self = self
	t.name = name
	t.priority = prio
}

// Name returns the diagnostic label.
func (t *Task) Name() string { return t.name }

// SetName changes the diagnostic label.
func (t *Task) SetName(name string) { t.name = name }

// Priority returns the task priority.
func (t *Task) Priority() Priority { return t.priority }

// SetPriority changes the priority. It takes effect on the next pass.
func (t *Task) SetPriority(p Priority) { t.priority = p }

// Scheduler returns the scheduler the task belongs to.
func (t *Task) Scheduler() *Scheduler { return t.sched }

// IsActive reports whether the task currently owns a live slot.
func (t *Task) IsActive() bool {
	_, ok := t.sched.resolve(t.ref, t)
	return ok
}

// Start registers the task, or refreshes its timestamp if already active.
func (t *Task) Start() {
	t.sched.register(t)
}

// Stop marks the task's slot for removal. The slot itself is recycled by the
// next dispatch pass that walks past it. Stopping an inactive task is a no-op.
func (t *Task) Stop() {
	if !t.IsActive() {
		t.ref = slotRef{}
		return
	}
	t.detach(StatusStop)
}

// PrepareInvoke detaches the task ahead of its callback.
func (t *Task) PrepareInvoke() {
	assertf(t.IsActive(), "invoking inactive task %q", t.name)
	t.detach(StatusDetach)
}

func (t *Task) detach(kind StatusKind) {
	idx := t.ref.index
	t.sched.unbind(t.ref)
	t.ref = slotRef{}
	t.sched.emit(StatusEvent{Kind: kind, Task: t.name, Priority: t.priority, Slot: idx})
}

// lastInvokedAt returns the tick of the last activation or invocation.
func (t *Task) lastInvokedAt() uint64 {
	sl, ok := t.sched.resolve(t.ref, t)
	assertf(ok, "task %q has no slot", t.name)
	return sl.lastTime
}

// assign copies the priority of src and mirrors its active state. Identity
// and slot are never shared.
func (t *Task) assign(src *Task, start func()) {
	if t.IsActive() {
		t.Stop()
	}
	t.priority = src.priority
	if src.IsActive() {
		start()
	}
}
