package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/memoview/internal/app"
	"github.com/vango-dev/memoview/internal/config"
	"github.com/vango-dev/memoview/internal/errors"
	"github.com/vango-dev/memoview/pkg/loop"
)

// demoOptions configures a headless run.
type demoOptions struct {
	ticks    int
	interval time.Duration
	clock    loop.Clock
	logger   *slog.Logger
	out      io.Writer

	// started runs on the loop once the timer is running.
	started func()
}

func demoCmd() *cobra.Command {
	var (
		ticks     int
		interval  time.Duration
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the memoization demo without a browser",
		Long: `Run the view model and its memoized regions headless.

The timer ticks the given number of times, then a fixed script toggles
isPaused and videoType, sets isPaused to its current value and stops the
timer. Every notification and region render is logged, followed by a
table of renders and skips per region.

Examples:
  memoview demo
  memoview demo --ticks 10 --interval 100ms
  memoview demo --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err := runDemo(ctx, demoOptions{
				ticks:    ticks,
				interval: interval,
				clock:    loop.RealClock{},
				logger:   newLogger(cfg, os.Stderr),
				out:      cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().IntVar(&ticks, "ticks", 3, "Timer ticks before the toggle script runs")
	cmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "Counter timer interval")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	return cmd
}

// demoStep is one scripted store change.
type demoStep struct {
	name string
	run  func(*app.ViewModel)
}

var demoScript = []demoStep{
	{"toggle isPaused", (*app.ViewModel).TogglePaused},
	{"toggle videoType", (*app.ViewModel).ToggleVideoType},
	{"set isPaused unchanged", func(vm *app.ViewModel) { vm.SetPaused(vm.IsPaused()) }},
	{"stop timer", (*app.ViewModel).StopTimer},
}

// logRecorder logs region renders and skips.
type logRecorder struct {
	logger *slog.Logger
}

func (r logRecorder) RegionRendered(region string) {
	r.logger.Info("region rendered", "region", region)
}

func (r logRecorder) RegionSkipped(region string) {
	r.logger.Debug("region skipped", "region", region)
}

// runDemo starts the timer, runs the script after the last tick and
// returns the final region stats.
func runDemo(ctx context.Context, opts demoOptions) ([]app.RegionStats, error) {
	if opts.ticks < 1 {
		return nil, errors.Newf(errors.CategoryCLI, "--ticks must be at least 1, got %d", opts.ticks)
	}
	if opts.interval <= 0 {
		return nil, errors.New("E104").
			WithDetailf("Interval %s is not positive", opts.interval)
	}

	logger := opts.logger
	l := loop.New(loop.WithClock(opts.clock), loop.WithLogger(logger))
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.Run(loopCtx)
	defer l.Close()

	var (
		vm    *app.ViewModel
		view  *app.View
		ticks int
		done  = make(chan struct{})
	)

	runScript := func() {
		for _, step := range demoScript {
			logger.Info("script", "step", step.name)
			step.run(vm)
		}
		close(done)
	}

	err := l.Do(ctx, func() {
		vm = app.NewViewModel(l,
			app.WithInterval(opts.interval),
			app.WithTickHook(func() {
				ticks++
				if ticks == opts.ticks {
					l.Dispatch(runScript)
				}
			}))

		notifications := 0
		vm.Subscribe(func() {
			notifications++
			logger.Info("notify", "seq", notifications, "state", vm.String())
		})

		view = app.NewView(vm,
			app.WithNow(opts.clock.Now),
			app.WithRecorder(logRecorder{logger: logger}))

		vm.StartTimer()
		if opts.started != nil {
			opts.started()
		}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var stats []app.RegionStats
	if err := l.Do(ctx, func() {
		stats = view.Stats()
		view.Close()
		vm.Close()
	}); err != nil {
		return nil, err
	}

	writeStats(opts.out, stats)
	return stats, nil
}

func writeStats(w io.Writer, stats []app.RegionStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tRENDERS\tSKIPS")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.Renders, s.Skips)
	}
	tw.Flush()
}
