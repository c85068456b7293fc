package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/memoview/internal/app"
	"github.com/vango-dev/memoview/internal/config"
	"github.com/vango-dev/memoview/pkg/loop"
	"github.com/vango-dev/memoview/pkg/memo"
	"github.com/vango-dev/memoview/pkg/metrics"
	"github.com/vango-dev/memoview/pkg/server"
)

// serveFlags are command-line overrides applied on top of memoview.json.
type serveFlags struct {
	configPath string
	port       int
	host       string
	interval   string
	logLevel   string
	logFormat  string
	noMetrics  bool
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memoization page",
		Long: `Serve the memoization page over HTTP and push region updates to every
connected browser over WebSocket.

Configuration is read from memoview.json in the current directory when it
exists. Flags override the file.

Examples:
  memoview serve
  memoview serve --port 8080
  memoview serve --interval 250ms --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to the config file (default ./memoview.json)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Port to run on (default from memoview.json)")
	cmd.Flags().StringVarP(&flags.host, "host", "H", "", "Host to bind to (default from memoview.json)")
	cmd.Flags().StringVar(&flags.interval, "interval", "", "Counter timer interval, e.g. 500ms")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")
	cmd.Flags().BoolVar(&flags.noMetrics, "no-metrics", false, "Disable the Prometheus endpoint")

	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags serveFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadOptional(".")
	}
	if err != nil {
		return nil, err
	}

	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}
	if flags.host != "" {
		cfg.Server.Host = flags.host
	}
	if flags.interval != "" {
		cfg.Timer.Interval = flags.interval
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.noMetrics {
		cfg.Metrics.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stderr)
	interval, err := cfg.TimerInterval()
	if err != nil {
		return err
	}
	tp := tracerProvider(cfg)

	var recorder *metrics.Recorder
	loopOpts := []loop.Option{
		loop.WithQueueSize(cfg.Loop.QueueSize),
		loop.WithLogger(logger),
		loop.WithTracer(tp.Tracer("memoview/loop")),
	}
	if cfg.Metrics.Enabled {
		recorder = metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
		loopOpts = append(loopOpts, loop.WithObserver(recorder))
	}

	// The loop outlives ctx so that shutdown can still tear sessions down.
	l := loop.New(loopOpts...)
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	go l.Run(loopCtx)
	defer l.Close()

	var vm *app.ViewModel
	if err := l.Do(ctx, func() {
		vm = app.NewViewModel(l,
			app.WithInterval(interval),
			app.WithTickHook(recorder.RecordTimerTick))
	}); err != nil {
		return err
	}

	var regionRecorder memo.Recorder
	if recorder != nil {
		regionRecorder = recorder
	}

	srvConfig := server.DefaultConfig()
	srvConfig.Loop = l
	srvConfig.Store = vm
	srvConfig.NewScreen = func() server.Screen {
		return app.NewView(vm, app.WithRecorder(regionRecorder))
	}
	srvConfig.Address = cfg.Address()
	srvConfig.Styles = app.Styles
	srvConfig.Recorder = recorder
	if cfg.Metrics.Enabled {
		srvConfig.MetricsPath = cfg.Metrics.Path
	}
	srvConfig.Logger = logger
	srvConfig.Tracer = tp.Tracer(server.TracerName)

	srv, err := server.New(srvConfig)
	if err != nil {
		return err
	}

	fmt.Println()
	success("Serving on %s", cfg.URL())
	info("Timer interval: %s", interval)
	if cfg.Metrics.Enabled {
		info("Metrics: %s%s", cfg.URL(), cfg.Metrics.Path)
	}
	info("Press Ctrl+C to stop")
	fmt.Println()

	serveErr := srv.ListenAndServe(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Do(closeCtx, vm.Close); err != nil {
		logger.Warn("view model close", "error", err)
	}
	return serveErr
}
