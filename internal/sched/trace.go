// internal/sched/trace.go

package sched

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CSVTrace writes status events as CSV rows. Pass its Observe method to
// WithObserver.
type CSVTrace struct {
	file   *os.File
	writer *csv.Writer
	rows   int
}

// NewCSVTrace creates (or truncates) the file at path and writes the header.
func NewCSVTrace(path string) (*CSVTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace %s: %w", path, err)
	}
	t := newCSVTrace(f)
	t.file = f
	return t, nil
}

func newCSVTrace(w io.Writer) *CSVTrace {
	cw := csv.NewWriter(w)

	// write header
	_ = cw.Write([]string{"tick", "event", "task", "priority", "slot", "period"})
	cw.Flush()
	return &CSVTrace{writer: cw}
}

// Observe appends one event.
func (t *CSVTrace) Observe(ev StatusEvent) {
	period := ""
	if ev.Period != 0 {
		period = strconv.FormatUint(ev.Period, 10)
	}
	prio := ""
	if ev.Task != "" {
		prio = ev.Priority.String()
	}
	_ = t.writer.Write([]string{
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		ev.Task,
		prio,
		strconv.Itoa(ev.Slot),
		period,
	})
	t.rows++
}

// Rows returns the number of events written.
func (t *CSVTrace) Rows() int { return t.rows }

// Close flushes buffered rows and closes the file.
func (t *CSVTrace) Close() error {
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}
