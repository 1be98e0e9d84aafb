package sched

import (
	"math"
	"testing"
)

// fakeTimer records how the scheduler drives the platform timer.
type fakeTimer struct {
	callback func(bool)
	starts   []uint64
	stops    int
	armed    uint64
}

func (f *fakeTimer) SetCallback(fn func(bool)) { f.callback = fn }
func (f *fakeTimer) Start(d uint64) { f.starts = append(f.starts, d); f.armed = d }
func (f *fakeTimer) Stop() { f.stops++; f.armed = 0 }
func (f *fakeTimer) fire(idle bool) { f.callback(idle) }

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *ManualClock, *fakeTimer) {
	t.Helper()
	clock := NewManualClock(0)
	ft := &fakeTimer{}
	s := New(clock, ft, opts...)
	if ft.callback == nil {
		t.Fatal("scheduler did not register its callback")
	}
	return s, clock, ft
}

func TestMinPeriodUntilEarliestTimer(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	a := NewTimer(s, "a")
	a.SetTimeout(50)
	a.Start()
	b := NewTimer(s, "b")
	b.SetTimeout(200)
	b.Start()

	if got := s.TimerPeriod(); got != 50 {
		t.Fatalf("armed period after start = %d, want 50", got)
	}

	clock.Set(10)
	s.ProcessTaskScheduling(false)

	if got := s.TimerPeriod(); got != 40 {
		t.Errorf("min sleep period = %d, want 40", got)
	}
	if ft.armed != 40 {
		t.Errorf("platform timer armed with %d, want 40", ft.armed)
	}
	if !a.IsActive() || !b.IsActive() {
		t.Error("no timer was due, both must stay active")
	}
}

func TestRoundRobinAmongEqualPriority(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	var order []string
	record := func(tm *Timer) { order = append(order, tm.Name()) }

	a := NewAutoTimer(s, "a")
	a.SetInvokeHandler(record)
	a.Start()
	b := NewAutoTimer(s, "b")
	b.SetInvokeHandler(record)
	b.Start()

	for tick := uint64(1); tick <= 8; tick++ {
		clock.Set(tick)
		ft.fire(false)
	}

	if len(order) != 8 {
		t.Fatalf("got %d invocations, want 8: %v", len(order), order)
	}
	for i := 1; i < len(order); i++ {
		if order[i] == order[i-1] {
			t.Fatalf("%s ran twice in a row at pass %d: %v", order[i], i, order)
		}
	}
}

func TestPriorityPreemption(t *testing.T) {
	for _, highFirst := range []bool{true, false} {
		s, clock, ft := newTestScheduler(t)

		var ran []string
		record := func(tm *Timer) { ran = append(ran, tm.Name()) }

		hi := NewTimer(s, "hi")
		hi.SetPriority(PriorityHighest)
		hi.SetTimeout(5)
		hi.SetInvokeHandler(record)
		lo := NewTimer(s, "lo")
		lo.SetPriority(PriorityLowest)
		lo.SetTimeout(5)
		lo.SetInvokeHandler(record)

		if highFirst {
			hi.Start()
			lo.Start()
		} else {
			lo.Start()
			hi.Start()
		}

		clock.Set(5)
		ft.fire(false)

		if len(ran) != 1 || ran[0] != "hi" {
			t.Errorf("highFirst=%v: ran %v, want [hi]", highFirst, ran)
		}
		if hi.IsActive() {
			t.Errorf("highFirst=%v: one-shot timer still active after it ran", highFirst)
		}
		if !lo.IsActive() {
			t.Errorf("highFirst=%v: lowest timer lost its slot without running", highFirst)
		}
		// the displaced candidate is still due, so the loop must wake up asap
		if got := s.TimerPeriod(); got != MinSleepPeriod {
			t.Errorf("highFirst=%v: period = %d, want %d", highFirst, got, MinSleepPeriod)
		}
	}
}

func TestIdleOnlyRunsOnIdlePass(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	runs := 0
	idle := NewIdle(s, "paint")
	idle.SetPriority(PriorityHighest)
	idle.SetIdleHandler(func(*Idle) { runs++ })
	idle.Start()

	if ft.armed != MinSleepPeriod {
		t.Errorf("idle start armed %d, want %d", ft.armed, MinSleepPeriod)
	}

	for tick := uint64(1); tick <= 3; tick++ {
		clock.Set(tick)
		ft.fire(false)
	}
	if runs != 0 {
		t.Fatalf("idle ran %d times on non-idle passes", runs)
	}
	if got := s.TimerPeriod(); got != MinSleepPeriod {
		t.Errorf("pending idle should keep period at %d, got %d", MinSleepPeriod, got)
	}

	clock.Set(4)
	ft.fire(true)
	if runs != 1 {
		t.Fatalf("idle ran %d times on idle pass, want 1", runs)
	}
	if idle.IsActive() {
		t.Error("idle is one-shot and must be inactive after running")
	}
}

func TestIdleDoesNotBlockReadyTimer(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	var ran []string
	idle := NewIdle(s, "idle")
	idle.SetPriority(PriorityHighest)
	idle.SetIdleHandler(func(i *Idle) { ran = append(ran, i.Name()) })
	idle.Start()

	tm := NewTimer(s, "timer")
	tm.SetPriority(PriorityLowest)
	tm.SetTimeout(2)
	tm.SetInvokeHandler(func(x *Timer) { ran = append(ran, x.Name()) })
	tm.Start()

	clock.Set(2)
	ft.fire(false)

	if len(ran) != 1 || ran[0] != "timer" {
		t.Errorf("ran %v, want [timer]", ran)
	}
}

func TestHugeTimeoutNeverWrapsIntoThePast(t *testing.T) {
	s, clock, ft := newTestScheduler(t)
	clock.Set(5)

	runs := 0
	far := NewTimer(s, "far")
	far.SetTimeout(math.MaxUint64)
	far.SetInvokeHandler(func(*Timer) { runs++ })
	far.Start()

	ft.fire(false)
	if runs != 0 || !far.IsActive() {
		t.Fatalf("runs=%d active=%v, a saturated deadline must never be due", runs, far.IsActive())
	}
	if got := s.TimerPeriod(); got != MaxSleepPeriod {
		t.Errorf("period = %d, want MaxSleepPeriod", got)
	}

	near := NewTimer(s, "near")
	near.SetTimeout(math.MaxUint64 - 2)
	near.SetInvokeHandler(func(*Timer) { runs++ })
	near.Start()
	soon := NewTimer(s, "soon")
	soon.SetTimeout(10)
	soon.Start()

	ft.fire(false)
	if runs != 0 {
		t.Fatalf("runs = %d, wrapped deadline reported due", runs)
	}
	if got := s.TimerPeriod(); got != 10 {
		t.Errorf("period = %d, want 10 from the short timer", got)
	}

	clock.Set(1000)
	ft.fire(false)
	if runs != 0 || !far.IsActive() || !near.IsActive() {
		t.Errorf("runs=%d far=%v near=%v after the short timer ran", runs, far.IsActive(), near.IsActive())
	}
}

func TestAutoTimerStaysActive(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	runs := 0
	auto := NewAutoTimer(s, "auto")
	auto.SetTimeout(10)
	auto.SetInvokeHandler(func(*Timer) { runs++ })
	auto.Start()

	for i := uint64(1); i <= 5; i++ {
		clock.Set(10 * i)
		ft.fire(false)
		if !auto.IsActive() {
			t.Fatalf("auto timer inactive after invocation %d", i)
		}
	}
	if runs != 5 {
		t.Errorf("auto timer ran %d times, want 5", runs)
	}
	if s.SlotCount() != 1 {
		t.Errorf("auto timer used %d slots, want 1", s.SlotCount())
	}
}

func TestPlainTimerIsOneShot(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	runs := 0
	tm := NewTimer(s, "once")
	tm.SetTimeout(10)
	tm.SetInvokeHandler(func(*Timer) { runs++ })
	tm.Start()

	clock.Set(10)
	ft.fire(false)
	if runs != 1 || tm.IsActive() {
		t.Fatalf("runs=%d active=%v, want 1 and inactive", runs, tm.IsActive())
	}
	if s.ChainLen() != 1 {
		t.Errorf("detached slot should linger until the next pass, chain len %d", s.ChainLen())
	}

	clock.Set(20)
	ft.fire(false)
	if runs != 1 {
		t.Errorf("inactive timer ran again")
	}
	if s.ChainLen() != 0 || s.FreeCount() != 1 {
		t.Errorf("chain=%d free=%d, want 0 and 1", s.ChainLen(), s.FreeCount())
	}
	if s.TimerPeriod() != MaxSleepPeriod {
		t.Errorf("period = %d, want MaxSleepPeriod", s.TimerPeriod())
	}
	if ft.stops == 0 {
		t.Error("platform timer was not stopped with nothing pending")
	}
}

func TestSelfRestartingTimerReusesSlots(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	runs := 0
	tm := NewTimer(s, "again")
	tm.SetTimeout(1)
	tm.SetInvokeHandler(func(x *Timer) {
		runs++
		x.Start()
	})
	tm.Start()

	for tick := uint64(1); tick <= 10; tick++ {
		clock.Set(tick)
		ft.fire(false)
		if !tm.IsActive() {
			t.Fatalf("timer inactive after restarting itself at tick %d", tick)
		}
	}
	if runs != 10 {
		t.Errorf("runs = %d, want 10", runs)
	}
	if s.SlotCount() > 2 {
		t.Errorf("slot arena grew to %d, detached slots are not reused", s.SlotCount())
	}
}

func TestReentrantPassSkipsRunningTask(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	depth, maxDepth, runs := 0, 0, 0
	auto := NewAutoTimer(s, "reenter")
	auto.SetInvokeHandler(func(*Timer) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		runs++
		s.CallbackTaskScheduling(false)
		depth--
	})
	auto.Start()

	for tick := uint64(1); tick <= 3; tick++ {
		clock.Set(tick)
		ft.fire(false)
	}

	if maxDepth != 1 {
		t.Errorf("task re-entered itself, max depth %d", maxDepth)
	}
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
	if !auto.IsActive() {
		t.Error("auto timer lost its slot")
	}
	if s.TimerPeriod() != MinSleepPeriod {
		t.Errorf("outer pass must re-arm after the nested one, period %d", s.TimerPeriod())
	}
}

func TestPanickingCallbackClearsDispatchFlag(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	runs := 0
	auto := NewAutoTimer(s, "boom")
	auto.SetInvokeHandler(func(*Timer) {
		runs++
		if runs == 1 {
			panic("first run fails")
		}
	})
	auto.Start()

	clock.Set(1)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the callback panic to propagate")
			}
		}()
		ft.fire(false)
	}()

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].InDispatch {
		t.Fatalf("slot left in dispatch after panic: %+v", snap)
	}

	clock.Set(2)
	ft.fire(false)
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestStopFromSiblingCallback(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	victim := NewTimer(s, "victim")
	victim.SetTimeout(100)
	victim.Start()

	killer := NewTimer(s, "killer")
	killer.SetPriority(PriorityHighest)
	killer.SetTimeout(1)
	killer.SetInvokeHandler(func(*Timer) { victim.Stop() })
	killer.Start()

	clock.Set(1)
	ft.fire(false)
	if victim.IsActive() {
		t.Fatal("victim still active after being stopped")
	}
	if s.ChainLen() != 2 {
		t.Errorf("chain len = %d, stopped slots must wait for the next pass", s.ChainLen())
	}

	clock.Set(2)
	ft.fire(false)
	if s.ChainLen() != 0 || s.FreeCount() != 2 {
		t.Errorf("chain=%d free=%d, want 0 and 2", s.ChainLen(), s.FreeCount())
	}
}

func TestFastPathSkipsEarlyWakeup(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	runs := 0
	tm := NewTimer(s, "t")
	tm.SetTimeout(50)
	tm.SetInvokeHandler(func(*Timer) { runs++ })
	tm.Start()

	clock.Set(10)
	s.ProcessTaskScheduling(false)
	if s.TimerPeriod() != 40 {
		t.Fatalf("period = %d, want 40", s.TimerPeriod())
	}

	tm.SetTimeout(5)
	if s.TimerPeriod() != 5 {
		t.Fatalf("shorter timeout should re-arm to 5, got %d", s.TimerPeriod())
	}

	clock.Set(12)
	s.ProcessTaskScheduling(false)
	if runs != 0 {
		t.Fatal("pass ran before the cached period elapsed")
	}

	clock.Set(15)
	s.ProcessTaskScheduling(false)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestContractViolationPanics(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	bt := &belowFloorTask{}
	bt.init(s, bt, "bad", PriorityDefault)
	bt.Start()

	clock.Set(1)
	defer func() {
		if recover() == nil {
			t.Error("period below the floor must panic")
		}
	}()
	ft.fire(false)
}

type belowFloorTask struct {
	Task
}

func (b *belowFloorTask) ReadyForSchedule(uint64, bool) bool { return false }
func (b *belowFloorTask) UpdateMinPeriod(_, _ uint64) uint64 { return 0 }
func (b *belowFloorTask) Invoke() {}

func TestTeardown(t *testing.T) {
	s, _, ft := newTestScheduler(t)

	a := NewTimer(s, "a")
	a.SetTimeout(10)
	a.Start()
	b := NewTimer(s, "b")
	b.Start()
	b.Stop()
	c := NewAutoTimer(s, "c")
	c.SetTimeout(20)
	c.Start()
	i := NewIdle(s, "i")
	i.Start()

	s.Teardown()

	if s.SlotCount() != 0 || s.ChainLen() != 0 || s.FreeCount() != 0 {
		t.Errorf("slots=%d chain=%d free=%d after teardown", s.SlotCount(), s.ChainLen(), s.FreeCount())
	}
	if s.TimerPeriod() != MaxSleepPeriod {
		t.Errorf("period = %d, want MaxSleepPeriod", s.TimerPeriod())
	}
	for _, task := range []*Task{&a.Task, &b.Task, &c.Task, &i.Task} {
		if task.IsActive() {
			t.Errorf("%s still active after teardown", task.Name())
		}
		if task.ref != (slotRef{}) {
			t.Errorf("%s kept a dangling slot ref", task.Name())
		}
	}
	if ft.stops == 0 {
		t.Error("platform timer not stopped")
	}

	// idempotent
	s.Teardown()
	if s.SlotCount() != 0 || s.TimerPeriod() != MaxSleepPeriod {
		t.Error("second teardown changed state")
	}

	a.Start()
	if !a.IsActive() || s.SlotCount() != 1 {
		t.Error("scheduler unusable after teardown")
	}
}

func TestTeardownOfEmptyScheduler(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Teardown()
	s.Teardown()
	if s.SlotCount() != 0 || s.TimerPeriod() != MaxSleepPeriod {
		t.Error("empty teardown left state behind")
	}
}

func TestTeardownFromCallback(t *testing.T) {
	s, clock, ft := newTestScheduler(t)

	auto := NewAutoTimer(s, "quit")
	auto.SetInvokeHandler(func(*Timer) { s.Teardown() })
	auto.Start()
	other := NewTimer(s, "other")
	other.SetTimeout(100)
	other.Start()

	clock.Set(1)
	ft.fire(false)

	if s.SlotCount() != 0 || auto.IsActive() || other.IsActive() {
		t.Error("teardown inside a callback did not release everything")
	}
	if s.TimerPeriod() != MaxSleepPeriod {
		t.Errorf("pass re-armed after teardown, period %d", s.TimerPeriod())
	}
}
