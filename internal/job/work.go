package job

import (
	"log/slog"
	"sort"

	"vsched/internal/sched"
)

// Tally counts invocations per task name. It is only touched from the loop
// goroutine.
type Tally struct {
	counts map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Add records one invocation of name.
func (t *Tally) Add(name string) { t.counts[name]++ }

// Count returns the invocations recorded for name.
func (t *Tally) Count(name string) int { return t.counts[name] }

// Names returns the recorded task names in lexical order.
func (t *Tally) Names() []string {
	names := make([]string, 0, len(t.counts))
	for n := range t.counts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Blink returns an AutoTimer handler that marks the given idles dirty on
// every tick, and restarts resize every resizeEvery ticks.
func Blink(tally *Tally, dirty []*sched.Idle, resize []*sched.Idle, resizeEvery int) func(*sched.Timer) {
	n := 0
	return func(t *sched.Timer) {
		tally.Add(t.Name())
		n++
		for _, i := range dirty {
			i.Start()
		}
		if resizeEvery > 0 && n%resizeEvery == 0 {
			for _, i := range resize {
				i.Start()
			}
		}
	}
}

// Autosave returns a one-shot Timer handler that re-arms its timer, so it
// keeps firing at its timeout like an AutoTimer would.
func Autosave(tally *Tally, logger *slog.Logger) func(*sched.Timer) {
	return func(t *sched.Timer) {
		tally.Add(t.Name())
		logger.Debug("autosave", "count", tally.Count(t.Name()), "tick", t.Scheduler().Clock().Ticks())
		t.Start()
	}
}

// Paint returns an Idle handler that only records the run.
func Paint(tally *Tally) func(*sched.Idle) {
	return func(i *sched.Idle) {
		tally.Add(i.Name())
	}
}
