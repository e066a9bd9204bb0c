// Package engine is the consumer side of a run: it drains the queue of test
// units, executes each one with its fixtures and output capture, classifies
// the outcome and tears fixtures down.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"snektest/internal/capture"
	"snektest/internal/fixture"
	"snektest/internal/results"
	"snektest/internal/suite"
	"snektest/pkg/logging"
)

// Options is the run configuration the engine honours.
type Options struct {
	// CaptureOutput captures what tests write instead of passing it through.
	CaptureOutput bool
	// PDBOnFailure opens the debugger on the first failure and stops
	// scheduling afterwards.
	PDBOnFailure bool
	// Mark is the marker filter the run was collected with.
	Mark string
	// TeardownTimeout bounds each teardown pass. Zero means no bound.
	TeardownTimeout time.Duration
	// MaxOutputBytes bounds the output captured per test. Zero keeps the
	// capture default.
	MaxOutputBytes int
}

// Reporter receives per-test progress.
type Reporter interface {
	TestStarted(name string)
	TestFinished(result results.TestResult)
}

// PostMortem is what the debugger gets to inspect after a failure.
type PostMortem struct {
	Test string
	File string
	Err  error
	// Detail is the assertion detail of a failed test.
	Detail string
	// Trace is narrowed to frames of File.
	Trace  results.Traceback
	Output string
	// Eval is nil when the module cannot evaluate expressions.
	Eval suite.Evaluator
}

// Debugger opens an interactive post-mortem session.
type Debugger interface {
	PostMortem(ctx context.Context, pm PostMortem) error
}

// UnreachableError reports a violated internal invariant.
type UnreachableError struct {
	Reason string
}

func (e *UnreachableError) Error() string {
	return "internal error: " + e.Reason
}

// Engine executes test units against a fixture registry.
type Engine struct {
	registry *fixture.Registry
	opts     Options
	stdout   io.Writer
	stdin    io.Reader
	reporter Reporter
	debugger Debugger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStdio sets the real standard output and input tests see when not
// captured.
func WithStdio(stdout io.Writer, stdin io.Reader) Option {
	return func(e *Engine) {
		e.stdout = stdout
		e.stdin = stdin
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithDebugger sets the post-mortem debugger used with PDBOnFailure.
func WithDebugger(d Debugger) Option {
	return func(e *Engine) {
		e.debugger = d
	}
}

// New creates an engine.
func New(registry *fixture.Registry, opts Options, options ...Option) *Engine {
	e := &Engine{
		registry: registry,
		opts:     opts,
		stdout:   os.Stdout,
		stdin:    os.Stdin,
		reporter: nopReporter{},
	}
	for _, o := range options {
		o(e)
	}
	return e
}

type nopReporter struct{}

func (nopReporter) TestStarted(string)               {}
func (nopReporter) TestFinished(results.TestResult) {}

// Run executes items from queue in order until the queue is closed and
// drained, ctx ends, or the debugger stops the run. Session fixtures are
// torn down on every exit path.
func (e *Engine) Run(ctx context.Context, queue <-chan suite.Item) *results.RunSummary {
	summary := results.NewRunSummary(time.Now())

loop:
	for {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		select {
		case <-ctx.Done():
			summary.Cancelled = true
			break loop
		case item, ok := <-queue:
			if !ok {
				break loop
			}

			res := e.Execute(ctx, item)
			summary.Add(res)
			e.reporter.TestFinished(res)

			if e.opts.PDBOnFailure && res.HasFailure() {
				e.postMortem(ctx, item, res)
				summary.DebuggerStopped = true
				break loop
			}
		}
	}

	sessionOut := capture.New(e.opts.CaptureOutput, e.stdout, nil)
	teardownCtx, cancel := e.teardownContext(ctx)
	failures := e.registry.TeardownSession(teardownCtx, sessionOut.Stdout())
	cancel()
	_ = sessionOut.Close()

	summary.SessionOutput = sessionOut.Output()
	summary.Finish(failures, time.Now())
	logging.Debug("Engine", "run finished: %d results, %d session teardown failures", len(summary.Results), len(failures))

	// A failing session teardown is only debugged when no test was.
	if e.opts.PDBOnFailure && !summary.DebuggerStopped && len(failures) > 0 {
		f := failures[0]
		e.openDebugger(ctx, PostMortem{
			Test:   "session fixture " + f.Fixture,
			Err:    f.Err,
			Trace:  f.Trace,
			Output: summary.SessionOutput,
		})
	}
	return summary
}

// Execute runs one unit and tears down its function fixtures.
func (e *Engine) Execute(ctx context.Context, item suite.Item) results.TestResult {
	if item.Module == nil || item.Test == nil {
		err := &UnreachableError{Reason: "queued item without a test"}
		return results.TestResult{Name: "<unknown>", Outcome: results.Outcome{Status: results.StatusError, Err: err}}
	}

	name := item.Name()
	e.reporter.TestStarted(name)
	logging.Debug("Engine", "running %s", name)

	out := capture.New(e.opts.CaptureOutput, e.stdout, e.stdin,
		capture.WithMaxBytes(e.opts.MaxOutputBytes),
		capture.OnInteractive(func() {
			logging.Debug("Engine", "%s read stdin, output capture disabled", name)
		}),
	)
	pool := e.registry.NewFunctionPool()
	tc := &testContext{ctx: ctx, item: item, registry: e.registry, pool: pool, out: out}

	start := time.Now()
	err := e.invoke(ctx, item.Test, tc)
	duration := time.Since(start)

	logging.Debug("Engine", "%s finished in %s, tearing down %d fixtures", name, duration, pool.Len())
	teardownCtx, cancel := e.teardownContext(ctx)
	failures := pool.TeardownAll(teardownCtx, out.Stdout())
	cancel()
	_ = out.Close()

	return results.TestResult{
		Name:                    name,
		File:                    item.Path(),
		Markers:                 item.Test.Markers,
		Duration:                duration,
		Outcome:                 results.Classify(err),
		Output:                  out.Output(),
		OutputTruncated:         out.Truncated(),
		Warnings:                out.Warnings(),
		FixtureTeardownFailures: failures,
	}
}

// invoke runs a test body. Async bodies are abandoned when ctx ends.
func (e *Engine) invoke(ctx context.Context, test *suite.Test, tc *testContext) error {
	if test.Kind != suite.Async {
		return callSafely(test.Func, tc)
	}

	done := make(chan error, 1)
	go func() {
		done <- callSafely(test.Func, tc)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("test abandoned: %w", ctx.Err())
	}
}

func callSafely(fn suite.TestFunc, tc suite.TestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = results.NewPanicError(r, 0)
		}
	}()
	return fn(tc)
}

// teardownContext detaches teardown from cancellation of the run so that
// fixtures are always cleaned up.
func (e *Engine) teardownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.opts.TeardownTimeout > 0 {
		return context.WithTimeout(detached, e.opts.TeardownTimeout)
	}
	return context.WithCancel(detached)
}

func (e *Engine) postMortem(ctx context.Context, item suite.Item, res results.TestResult) {
	err, trace := res.Outcome.Err, res.Outcome.Trace
	if err == nil && len(res.FixtureTeardownFailures) > 0 {
		err, trace = res.FixtureTeardownFailures[0].Err, res.FixtureTeardownFailures[0].Trace
	}
	if err == nil {
		logging.Error("Engine", &UnreachableError{Reason: "failure without error context"}, "cannot debug %s", res.Name)
		return
	}

	e.openDebugger(ctx, PostMortem{
		Test:   res.Name,
		File:   item.Path(),
		Err:    err,
		Detail: res.Outcome.Detail,
		Trace:  trace.Narrow(item.Path()),
		Output: res.Output,
		Eval:   item.Module.Eval,
	})
}

func (e *Engine) openDebugger(ctx context.Context, pm PostMortem) {
	if e.debugger == nil {
		logging.Warn("Engine", "debug on failure requested but no debugger is available")
		return
	}
	if err := e.debugger.PostMortem(ctx, pm); err != nil {
		logging.Error("Engine", err, "debugger session for %s failed", pm.Test)
	}
}
