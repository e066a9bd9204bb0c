// Package session wires one run together: it parses filters, starts the
// collector in its own goroutine, drains the queue with the engine on the
// calling goroutine and joins the collector before reporting.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	"snektest/internal/collector"
	"snektest/internal/engine"
	"snektest/internal/fixture"
	"snektest/internal/reporting"
	"snektest/internal/results"
	"snektest/internal/selector"
	"snektest/internal/suite"
	"snektest/pkg/logging"
)

// DefaultQueueSize is the capacity of the queue between collector and engine.
const DefaultQueueSize = 64

// ErrInterrupted is returned when the run was cancelled before the queue
// drained. The summary holds the results gathered until then.
var ErrInterrupted = errors.New("run interrupted")

// Options configure a session.
type Options struct {
	// Args are the raw filters; "." when empty.
	Args []string
	// Root is the directory FS is rooted at, used to relativize absolute
	// filter paths.
	Root string
	FS   fs.FS

	Collector collector.Options
	Engine    engine.Options
	QueueSize int
	// ReportPath is the report directory announced to the reporter.
	ReportPath string

	Stdout io.Writer
	Stdin  io.Reader
}

// Session runs the tests selected by its options once.
type Session struct {
	opts      Options
	collector *collector.Collector
	registry  *fixture.Registry
	reporter  reporting.Reporter
	debugger  engine.Debugger
}

// New creates a session. Loaders turn source files into modules.
func New(opts Options, reporter reporting.Reporter, debugger engine.Debugger, loaders ...collector.Loader) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	return &Session{
		opts:      opts,
		collector: collector.New(opts.FS, opts.Collector, loaders...),
		registry:  fixture.NewRegistry(),
		reporter:  reporter,
		debugger:  debugger,
	}
}

// Filters parses and validates the session's filters. Errors are
// *selector.ArgsError.
func (s *Session) Filters() ([]selector.Filter, error) {
	filters, err := selector.ParseAll(s.opts.Args, s.opts.Root)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		if err := f.Validate(s.opts.FS); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

// List collects the selected units without running them.
func (s *Session) List(ctx context.Context) ([]suite.Item, error) {
	filters, err := s.Filters()
	if err != nil {
		return nil, err
	}
	return s.collector.List(ctx, filters)
}

// Run collects and executes the selected tests. A collection error is
// returned after the collector has been joined and session fixtures torn
// down; the report is then skipped. A run ended by ctx, whether cancelled or
// past its deadline, is reported and returns ErrInterrupted.
func (s *Session) Run(ctx context.Context) (*results.RunSummary, error) {
	filters, err := s.Filters()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.String()
	}
	s.reporter.RunStarted(reporting.RunInfo{
		Filters:       names,
		CaptureOutput: s.opts.Engine.CaptureOutput,
		PDBOnFailure:  s.opts.Engine.PDBOnFailure,
		Mark:          s.opts.Collector.Mark,
		ReportPath:    s.opts.ReportPath,
	})

	collectCtx, stopCollect := context.WithCancel(ctx)
	defer stopCollect()

	queue := make(chan suite.Item, s.opts.QueueSize)
	g, gCtx := errgroup.WithContext(collectCtx)
	g.Go(func() error {
		err := s.collector.Collect(gCtx, filters, queue)
		if err != nil && gCtx.Err() != nil {
			// Stopped by the end of the run, not broken. A load cut short
			// surfaces as a script error rather than a context error.
			logging.Debug("Session", "collection stopped: %v", err)
			return nil
		}
		return err
	})

	eng := engine.New(s.registry, s.opts.Engine,
		engine.WithStdio(s.opts.Stdout, s.opts.Stdin),
		engine.WithReporter(s.reporter),
		engine.WithDebugger(s.debugger),
	)
	summary := eng.Run(ctx, queue)

	// The engine may stop before the queue is drained; release a collector
	// blocked on a send.
	stopCollect()
	collectErr := g.Wait()
	logging.Debug("Session", "collector joined: %v", collectErr)

	if collectErr != nil {
		return summary, collectErr
	}
	// The collector may have closed the queue because ctx ended; the engine
	// then sees a drained queue rather than the cancellation.
	if ctx.Err() != nil {
		summary.Cancelled = true
	}

	s.reporter.RunFinished(summary)
	if summary.Cancelled {
		return summary, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
	}
	return summary, nil
}
