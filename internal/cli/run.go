package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vsched/internal/job"
	"vsched/internal/loop"
	"vsched/internal/sched"
)

func newRunCmd() *cobra.Command {
	var (
		duration time.Duration
		trace    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo workload and report what ran",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("duration") {
				cfg.RunMS = int(duration / time.Millisecond)
			}
			if cmd.Flags().Changed("trace") {
				cfg.TracePath = trace
			}
			return runWorkload(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 2*time.Second, "How long to run the loop")
	cmd.Flags().StringVar(&trace, "trace", "", "Write a CSV event trace to this path")
	return cmd
}

func runWorkload(parent context.Context, out io.Writer, cfg sched.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	var opts []sched.Option
	var tr *sched.CSVTrace
	if cfg.TracePath != "" {
		var err error
		tr, err = sched.NewCSVTrace(cfg.TracePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := tr.Close(); err != nil {
				logger.Warn("closing trace", "err", err)
			}
		}()
		opts = append(opts, sched.WithObserver(tr.Observe))
	}

	l := loop.New(sched.NewSystemClock(), logger, opts...)
	w := job.Build(l.Scheduler(), cfg, logger)

	var snapshot []sched.TaskInfo
	l.OnStop(func(s *sched.Scheduler) { snapshot = s.Snapshot() })

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RunMS)*time.Millisecond)
	defer cancel()

	if err := l.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tINVOCATIONS")
	for _, name := range w.Tally.Names() {
		fmt.Fprintf(tw, "%s\t%d\n", name, w.Tally.Count(name))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ACTIVE AT STOP\tPRIORITY\tLAST INVOKED")
	for _, ti := range snapshot {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", ti.Name, ti.Priority, ti.LastInvokedAt)
	}
	fmt.Fprintf(tw, "\ntimer firings: %d, arms: %d\n", l.Timer().Fired(), l.Timer().Arms())
	if tr != nil {
		fmt.Fprintf(tw, "trace: %d events -> %s\n", tr.Rows(), cfg.TracePath)
	}
	return tw.Flush()
}
