package job

import (
	"fmt"
	"log/slog"

	"vsched/internal/sched"
)

// Workload is the demo task set: a blinking cursor, a periodic autosave and
// a handful of resize/repaint idles the cursor keeps dirtying.
type Workload struct {
	Tally    *Tally
	Blink    *sched.AutoTimer
	Autosave *sched.Timer
	Resize   []*sched.Idle
	Repaint  []*sched.Idle
}

// Build creates the workload on s and starts its timers. It must run on the
// goroutine that owns s.
func Build(s *sched.Scheduler, cfg sched.Config, logger *slog.Logger) *Workload {
	w := &Workload{Tally: NewTally()}

	for i := 0; i < cfg.ResizeIdles; i++ {
		idle := sched.NewIdle(s, fmt.Sprintf("resize-%d", i))
		idle.SetPriority(sched.PriorityResize)
		idle.SetIdleHandler(Paint(w.Tally))
		w.Resize = append(w.Resize, idle)
	}
	for i := 0; i < cfg.RepaintIdles; i++ {
		idle := sched.NewIdle(s, fmt.Sprintf("repaint-%d", i))
		idle.SetPriority(sched.PriorityRepaint)
		idle.SetIdleHandler(Paint(w.Tally))
		w.Repaint = append(w.Repaint, idle)
	}

	w.Blink = sched.NewAutoTimer(s, "blink")
	w.Blink.SetTimeout(uint64(cfg.BlinkMS))
	w.Blink.SetInvokeHandler(Blink(w.Tally, w.Repaint, w.Resize, 5))
	w.Blink.Start()

	w.Autosave = sched.NewTimer(s, "autosave")
	w.Autosave.SetPriority(sched.PriorityLowest)
	w.Autosave.SetTimeout(uint64(cfg.AutosaveMS))
	w.Autosave.SetInvokeHandler(Autosave(w.Tally, logger))
	w.Autosave.Start()

	logger.Info("workload started",
		"blink_ms", cfg.BlinkMS,
		"autosave_ms", cfg.AutosaveMS,
		"resize_idles", cfg.ResizeIdles,
		"repaint_idles", cfg.RepaintIdles,
	)
	return w
}
