// Package suite declares what a test module contains: tests, fixtures and
// the contract a test body sees while it runs.
package suite

import (
	"context"
	"fmt"
	"io"

	"snektest/internal/params"
)

// Kind selects how a test body or fixture is driven.
type Kind int

const (
	// Sync bodies run to completion on the scheduler goroutine.
	Sync Kind = iota
	// Async bodies run on their own goroutine and are awaited with the run
	// context, so cancellation abandons them.
	Async
)

func (k Kind) String() string {
	if k == Async {
		return "async"
	}
	return "sync"
}

// Scope is the lifetime of a fixture value.
type Scope int

const (
	// ScopeFunction fixtures live for one test execution.
	ScopeFunction Scope = iota
	// ScopeSession fixtures live until the end of the run.
	ScopeSession
)

func (s Scope) String() string {
	if s == ScopeSession {
		return "session"
	}
	return "function"
}

// FixtureHandle is what a fixture body uses to hand its value to tests.
type FixtureHandle interface {
	// Context is the context of the phase currently running.
	Context() context.Context
	// Stdout is the output sink of the phase currently running.
	Stdout() io.Writer
	// Provide suspends the fixture with v as its value until teardown.
	// It may be called at most once.
	Provide(v any) error
	// Resolve returns the value of another fixture this one depends on.
	Resolve(f *Fixture) (any, error)
}

// FixtureFunc is a fixture body. Code before Provide is setup, code after it
// is cleanup. A body that never calls Provide is a plain value fixture whose
// return value is the fixture value.
type FixtureFunc func(h FixtureHandle) (any, error)

// Fixture declares a fixture.
type Fixture struct {
	// ID identifies the fixture within a run.
	ID    string
	Name  string
	Scope Scope
	Kind  Kind
	Func  FixtureFunc
}

// NewFixture declares a function-scoped fixture.
func NewFixture(id string, kind Kind, fn FixtureFunc) *Fixture {
	return &Fixture{ID: id, Name: id, Scope: ScopeFunction, Kind: kind, Func: fn}
}

// NewSessionFixture declares a session-scoped fixture.
func NewSessionFixture(id string, kind Kind, fn FixtureFunc) *Fixture {
	return &Fixture{ID: id, Name: id, Scope: ScopeSession, Kind: kind, Func: fn}
}

// TestContext is handed to every test body for one execution.
type TestContext interface {
	Context() context.Context
	// Name is the display name of the unit being executed.
	Name() string
	Params() params.Combination
	// Resolve returns the value of a fixture, setting it up on first use in
	// its scope.
	Resolve(f *Fixture) (any, error)
	Stdout() io.Writer
	// Stdin reads from the real standard input. Reading disables output
	// capture for the rest of the execution.
	Stdin() io.Reader
	Warn(message string)
}

// TestFunc is a test body.
type TestFunc func(tc TestContext) error

// Test declares a test function of a module.
type Test struct {
	Name    string
	Kind    Kind
	Func    TestFunc
	Params  [][]params.Value
	Markers []string
}

// Option configures a Test.
type Option func(*Test)

// WithParams declares the parameter lists of a test.
func WithParams(lists ...[]params.Value) Option {
	return func(t *Test) {
		t.Params = append(t.Params, lists...)
	}
}

// WithMarkers attaches markers to a test.
func WithMarkers(markers ...string) Option {
	return func(t *Test) {
		t.Markers = append(t.Markers, markers...)
	}
}

// NewTest declares a test.
func NewTest(name string, kind Kind, fn TestFunc, opts ...Option) *Test {
	t := &Test{Name: name, Kind: kind, Func: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HasMarker reports whether the test carries marker.
func (t *Test) HasMarker(marker string) bool {
	for _, m := range t.Markers {
		if m == marker {
			return true
		}
	}
	return false
}

// Evaluator evaluates an expression in the global scope of a loaded module.
// The debugger uses it when a module provides one.
type Evaluator interface {
	Eval(expr string) (string, error)
}

// Module is a loaded source file.
type Module struct {
	Path  string
	Tests []*Test
	// Eval is optional.
	Eval Evaluator
}

// Test returns the test named name.
func (m *Module) Test(name string) (*Test, bool) {
	for _, t := range m.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Item is one schedulable test unit: a test of a module together with one
// combination of its parameters.
type Item struct {
	Module      *Module
	Test        *Test
	Combination params.Combination
}

// Path is the source path of the unit.
func (i Item) Path() string {
	return i.Module.Path
}

// Name is the display name path::func or path::func[key].
func (i Item) Name() string {
	name := fmt.Sprintf("%s::%s", i.Module.Path, i.Test.Name)
	if key := i.Combination.Key(); key != "" {
		name += "[" + key + "]"
	}
	return name
}
