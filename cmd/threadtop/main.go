package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srodi/threadtop/pkg/collector/live"
	"github.com/srodi/threadtop/pkg/collector/replay"
	"github.com/srodi/threadtop/pkg/config"
	"github.com/srodi/threadtop/pkg/control"
	"github.com/srodi/threadtop/pkg/cost"
	"github.com/srodi/threadtop/pkg/logging"
	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
	"github.com/srodi/threadtop/pkg/view"
)

type options struct {
	interval    time.Duration
	limit       int
	mode        string
	width       int
	filter      string
	debug       bool
	logFile     string
	configPath  string
	metricsAddr string
	noClear     bool
	noInput     bool
	hints       bool
	procRoot    string
	ticks       int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "threadtop:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "threadtop <pid>",
		Short:         "threadtop ranks the threads of a process by cpu or allocation rate",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return o.session(cmd, func(log zerolog.Logger) source.Source {
				return live.New(pid, o.procRoot, log)
			})
		},
	}

	pf := root.PersistentFlags()
	pf.DurationVar(&o.interval, "interval", config.DefaultInterval, "refresh interval (e.g. 5s, 1m)")
	pf.IntVarP(&o.limit, "limit", "n", types.DefaultTopK, "number of threads to display")
	pf.StringVarP(&o.mode, "mode", "m", "cpu", "cpu, syscpu, totalcpu, totalsyscpu, memory, totalmemory or 1-6")
	pf.IntVar(&o.width, "width", 0, "frame width, 0 uses the terminal width")
	pf.StringVar(&o.filter, "filter", "", "only show threads whose name contains this substring (case-insensitive)")
	pf.BoolVar(&o.debug, "debug", false, "log at debug level and print the sampling cost")
	pf.StringVar(&o.logFile, "log-file", "", "log file path (default threadtop.log next to the executable)")
	pf.StringVar(&o.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/threadtop/config.yaml)")
	pf.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.BoolVar(&o.noClear, "no-clear", false, "append frames instead of redrawing the screen")
	pf.BoolVar(&o.noInput, "no-input", false, "do not read interactive commands from stdin")
	pf.BoolVar(&o.hints, "hints", false, "print the command prompt under every frame")
	pf.StringVar(&o.procRoot, "proc", "/proc", "procfs mount point")

	root.AddCommand(newReplayCommand(o), newRecordCommand(o))
	return root
}

func newReplayCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <file>",
		Short: "render a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := replay.Open(args[0])
			if err != nil {
				return err
			}
			return o.session(cmd, func(log zerolog.Logger) source.Source {
				return replay.NewSource(rec, log)
			})
		},
	}
}

func newRecordCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <pid> <file>",
		Short: "sample a process and write a recording for replay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			cfg, log, closeLog, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("creating recording: %w", err)
			}
			src := live.New(pid, o.procRoot, log)
			log.Info().Int("pid", pid).Int("ticks", o.ticks).Str("file", args[1]).Msg("recording")
			err = replay.Record(cmd.Context(), src, o.ticks, cfg.Interval, f)
			return errors.Join(err, src.Close(), f.Close())
		},
	}
	cmd.Flags().IntVar(&o.ticks, "ticks", 10, "number of samples to record")
	return cmd
}

func parsePID(arg string) (int, error) {
	pid, err := strconv.Atoi(arg)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", arg)
	}
	return pid, nil
}

// setup loads the config file, applies explicitly set flags over it and
// opens the log file.
func (o *options) setup(cmd *cobra.Command) (config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Interval = o.interval
	}
	if flags.Changed("limit") {
		cfg.Limit = o.limit
	}
	if flags.Changed("mode") {
		cfg.Mode = o.mode
	}
	if flags.Changed("width") {
		cfg.Width = o.width
	}
	if flags.Changed("filter") {
		cfg.Filter = o.filter
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	cfg.Hints = cfg.Hints || o.hints
	cfg.NoClear = cfg.NoClear || o.noClear
	if cfg, err = cfg.Normalize(); err != nil {
		return cfg, zerolog.Nop(), nil, err
	}

	log, closeFn, path, err := logging.Setup(o.logFile, o.debug)
	if err != nil {
		return cfg, zerolog.Nop(), nil, err
	}
	log.Debug().Str("path", path).Interface("config", cfg).Msg("starting")
	return cfg, log, func() { _ = closeFn() }, nil
}

// session renders frames from the source until quit, signal or detach.
func (o *options) session(cmd *cobra.Command, open func(zerolog.Logger) source.Source) error {
	cfg, log, closeLog, err := o.setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := cost.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		stopServer := serveMetrics(cfg.MetricsAddr, reg, log)
		defer stopServer()
	}

	state := control.NewState(cfg.ParsedMode(), cfg.Limit, cfg.Interval)
	state.SetNameFilter(cfg.Filter)
	state.SetCommandHints(cfg.Hints)

	stdoutFD := int(os.Stdout.Fd())
	interactive := term.IsTerminal(stdoutFD)
	width := cfg.Width
	if width == 0 && interactive {
		if w, _, err := term.GetSize(stdoutFD); err == nil {
			width = w
		}
	}

	src := open(log)
	v := view.New(view.Config{
		Source:      src,
		State:       state,
		Out:         os.Stdout,
		Width:       width,
		Debug:       o.debug,
		ClearScreen: interactive && !cfg.NoClear,
		Warnings:    cfg.Warnings,
		Metrics:     metrics,
		Logger:      log,
	})

	readCommands := !o.noInput && term.IsTerminal(int(os.Stdin.Fd()))
	if interactive && !cfg.NoClear {
		cleanupTerminal := enableSingleView(!readCommands, log)
		defer cleanupTerminal()
	}
	if readCommands {
		feed := &control.Feed{State: state, Printer: v, Logger: log}
		go func() {
			if err := feed.Run(ctx, os.Stdin); err != nil {
				log.Warn().Err(err).Msg("reading commands")
			}
			cancel()
		}()
	}

	err = v.Run(ctx)
	return errors.Join(err, src.Close())
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
