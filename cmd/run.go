package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"snektest/internal/config"
	"snektest/internal/debugger"
	"snektest/internal/engine"
	"snektest/internal/reporting"
	"snektest/internal/results"
	"snektest/internal/scripting"
	"snektest/internal/session"
	"snektest/internal/watch"
	"snektest/pkg/logging"
)

var (
	runNoCapture       bool
	runJSON            bool
	runPDB             bool
	runMark            string
	runConfigPath      string
	runReportPath      string
	runReportName      string
	runTimeout         time.Duration
	runTeardownTimeout time.Duration
	runWatch           bool
	runVerbose         bool
	runDebug           bool
	runNoColor         bool
)

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVarP(&runNoCapture, "no-capture", "s", false, "Do not capture test output")
	c.Flags().BoolVar(&runJSON, "json", false, "Print a machine-readable JSON summary instead of the report")
	c.Flags().BoolVar(&runPDB, "pdb", false, "Open the debugger on the first failure and stop the run")
	c.Flags().StringVarP(&runMark, "mark", "m", "", "Only run tests carrying this marker")
	c.Flags().StringVar(&runReportPath, "report", "", "Directory to save a detailed JSON report to")
	c.Flags().StringVar(&runReportName, "report-name", "", "File name template of the detailed report")
	c.Flags().DurationVar(&runTimeout, "timeout", 0, "Overall run timeout (0 disables it)")
	c.Flags().DurationVar(&runTeardownTimeout, "teardown-timeout", 0, "Timeout of each fixture teardown pass (0 disables it)")
	c.Flags().BoolVarP(&runWatch, "watch", "w", false, "Rerun the selected tests when test files change")

	c.PersistentFlags().StringVar(&runConfigPath, "config", "", "Configuration file (default: ./"+config.DefaultFileName+")")
	c.PersistentFlags().BoolVarP(&runVerbose, "verbose", "v", false, "Enable verbose output")
	c.PersistentFlags().BoolVar(&runDebug, "debug", false, "Enable debug logging")
	c.PersistentFlags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
}

// loadConfig reads the configuration file and applies the flags that were
// set on the command line on top of it.
func loadConfig(c *cobra.Command, dir string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if runConfigPath != "" {
		cfg, err = config.LoadFile(runConfigPath)
	} else {
		cfg, err = config.LoadConfig(dir)
	}
	if err != nil {
		return config.Config{}, err
	}

	flags := c.Flags()
	if flags.Changed("no-capture") {
		cfg.CaptureOutput = !runNoCapture
	}
	if flags.Changed("json") {
		cfg.JSON = runJSON
	}
	if flags.Changed("pdb") {
		cfg.PDBOnFailure = runPDB
	}
	if flags.Changed("mark") {
		cfg.Mark = runMark
	}
	if flags.Changed("report") {
		cfg.ReportPath = runReportPath
	}
	if flags.Changed("report-name") {
		cfg.ReportName = runReportName
	}
	if flags.Changed("timeout") {
		cfg.Timeout = runTimeout
	}
	if flags.Changed("teardown-timeout") {
		cfg.TeardownTimeout = runTeardownTimeout
	}
	if flags.Changed("watch") {
		cfg.Watch = runWatch
	}
	if runDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// setupOutput configures logging and colors for the command.
func setupOutput(c *cobra.Command, cfg config.Config) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	logging.InitForCLI(level, c.ErrOrStderr())

	if runNoColor || !isTerminal(c.OutOrStdout()) {
		text.DisableColors()
	} else {
		text.EnableColors()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// signalContext cancels the returned context on SIGINT or SIGTERM.
func signalContext(parent context.Context, out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(out, "\nReceived interrupt signal, stopping tests gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func runTests(c *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	cfg, err := loadConfig(c, cwd)
	if err != nil {
		return err
	}
	setupOutput(c, cfg)
	if len(args) == 0 {
		args = cfg.Paths
	}

	ctx, cancel := signalContext(c.Context(), c.ErrOrStderr())
	defer cancel()

	if cfg.PDBOnFailure && !isatty.IsTerminal(os.Stdin.Fd()) {
		logging.Warn("CLI", "debug on failure is enabled but standard input is not a terminal")
	}

	if cfg.Watch {
		return watchTests(ctx, c, cfg, cwd, args)
	}

	summary, err := runOnce(ctx, c, cfg, cwd, args)
	if err != nil {
		return err
	}
	if summary.Counts.HasFailures() {
		return &TestsFailedError{Counts: summary.Counts}
	}
	return nil
}

// runOnce executes one session. The run timeout applies per session.
func runOnce(ctx context.Context, c *cobra.Command, cfg config.Config, cwd string, args []string) (*results.RunSummary, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reporter, err := newReporter(c.OutOrStdout(), cfg)
	if err != nil {
		return nil, err
	}

	fsys := os.DirFS(cwd)
	var dbg engine.Debugger
	if cfg.PDBOnFailure {
		dbg = debugger.New(debugger.WithSource(fsys))
	}

	s := session.New(session.Options{
		Args:      args,
		Root:      cwd,
		FS:        fsys,
		Collector: collectorOptions(cfg),
		Engine: engine.Options{
			CaptureOutput:   cfg.CaptureOutput,
			PDBOnFailure:    cfg.PDBOnFailure,
			Mark:            cfg.Mark,
			TeardownTimeout: cfg.TeardownTimeout,
			MaxOutputBytes:  cfg.MaxOutputBytes,
		},
		QueueSize:  cfg.QueueSize,
		ReportPath: cfg.ReportPath,
		Stdout:     c.OutOrStdout(),
		Stdin:      c.InOrStdin(),
	}, reporter, dbg, scripting.NewLoader())

	return s.Run(ctx)
}

func newReporter(out io.Writer, cfg config.Config) (reporting.Reporter, error) {
	var reporters []reporting.Reporter
	if cfg.JSON {
		reporters = append(reporters, reporting.NewJSONReporter(out))
	} else {
		reporters = append(reporters, reporting.NewConsoleReporter(out, runVerbose))
	}

	if cfg.ReportPath != "" {
		file, err := reporting.NewReportFileReporter(cfg.ReportPath, cfg.ReportName)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, file)
	}

	if len(reporters) == 1 {
		return reporters[0], nil
	}
	return reporting.Multi(reporters...), nil
}

// watchTests reruns the session whenever a test source or the
// configuration file changes, until interrupted.
func watchTests(ctx context.Context, c *cobra.Command, cfg config.Config, cwd string, args []string) error {
	out := c.OutOrStdout()
	w := watch.New(cwd, cfg.WatchDebounce, func(p string) bool {
		return strings.HasSuffix(p, scripting.Extension) || filepath.Base(p) == config.DefaultFileName
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes := make(chan []string, 1)
	watchErr := make(chan error, 1)
	go func() {
		err := w.Watch(ctx, changes)
		if err != nil {
			cancel()
		}
		watchErr <- err
	}()

	var s *spinner.Spinner
	if isTerminal(out) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		s.Suffix = " Waiting for changes..."
	}

	watch.Loop(ctx, changes, func(ctx context.Context, changed []string) {
		if s != nil {
			s.Stop()
		}
		if len(changed) > 0 {
			fmt.Fprintf(out, "\n🔄 %d file(s) changed, rerunning\n", len(changed))
		}

		_, err := runOnce(ctx, c, cfg, cwd, args)
		if err != nil && !errors.Is(err, session.ErrInterrupted) {
			fmt.Fprintf(c.ErrOrStderr(), "error: %v\n", err)
		}

		if s != nil && ctx.Err() == nil {
			s.Start()
		}
	})
	if s != nil {
		s.Stop()
	}

	return <-watchErr
}
