package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"snektest/internal/results"
	"snektest/internal/suite"
)

// State is the lifecycle state of one fixture instance.
type State int

const (
	NotStarted State = iota
	// Suspended fixtures have provided their value and wait for teardown.
	Suspended
	Completed
	// Violated fixtures suspended a second time during teardown.
	Violated
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Violated:
		return "violated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// BadRequestError is returned when a fixture suspends again during teardown.
type BadRequestError struct {
	Fixture string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("fixture %s provided a value more than once", e.Fixture)
}

var (
	errProvidedTwice = errors.New("fixture already provided a value")
	errAbandoned     = errors.New("fixture phase abandoned")
)

type eventKind int

const (
	eventYield eventKind = iota
	eventDone
)

type event struct {
	kind  eventKind
	value any
	err   error
}

// Resolver resolves the dependencies of a fixture while it sets up.
type Resolver func(f *suite.Fixture) (any, error)

var errNoDependencies = errors.New("fixture dependencies are not available here")

// coroutine drives a fixture body through its two phases. The body runs on
// its own goroutine; every Provide and the final return are delivered as
// events, in order, on a single channel.
type coroutine struct {
	fixture *suite.Fixture
	deps    Resolver

	mu  sync.Mutex
	ctx context.Context
	out io.Writer

	state State
	value any

	events    chan event
	resume    chan struct{}
	abandoned chan struct{}
	abandon   sync.Once
	provides  atomic.Int32
}

func newCoroutine(f *suite.Fixture, deps Resolver) *coroutine {
	return &coroutine{
		fixture:   f,
		deps:      deps,
		state:     NotStarted,
		events:    make(chan event, 1),
		resume:    make(chan struct{}),
		abandoned: make(chan struct{}),
	}
}

func (c *coroutine) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *coroutine) Stdout() io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}

func (c *coroutine) Provide(v any) error {
	if c.provides.Add(1) > 1 {
		c.events <- event{kind: eventYield, value: v}
		return errProvidedTwice
	}
	c.events <- event{kind: eventYield, value: v}
	select {
	case <-c.resume:
		return nil
	case <-c.abandoned:
		return errAbandoned
	}
}

func (c *coroutine) Resolve(f *suite.Fixture) (any, error) {
	if c.deps == nil {
		return nil, errNoDependencies
	}
	return c.deps(f)
}

func (c *coroutine) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *coroutine) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *coroutine) setPhase(ctx context.Context, out io.Writer) {
	c.mu.Lock()
	c.ctx = ctx
	c.out = out
	c.mu.Unlock()
}

func (c *coroutine) run() {
	var (
		value any
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, results.NewPanicError(r, 0)
		}
		c.events <- event{kind: eventDone, value: value, err: err}
	}()
	value, err = c.fixture.Func(c)
}

// await returns the next event of the body. Async fixtures give up when ctx
// ends; the body is then left to finish on its own.
func (c *coroutine) await(ctx context.Context) (event, error) {
	if c.fixture.Kind == suite.Sync {
		return <-c.events, nil
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-ctx.Done():
		c.detach()
		return event{}, ctx.Err()
	}
}

// detach stops waiting for the body and swallows whatever it still emits.
func (c *coroutine) detach() {
	c.abandon.Do(func() {
		close(c.abandoned)
		go func() {
			for ev := range c.events {
				if ev.kind == eventDone {
					return
				}
			}
		}()
	})
}

// start runs setup up to the suspension point, or to completion for a plain
// value fixture.
func (c *coroutine) start(ctx context.Context, out io.Writer) (any, error) {
	c.setPhase(ctx, out)
	go c.run()

	ev, err := c.await(ctx)
	if err != nil {
		c.setState(Failed)
		return nil, fmt.Errorf("fixture %s setup: %w", c.fixture.Name, err)
	}
	if ev.kind == eventYield {
		c.setState(Suspended)
		c.value = ev.value
		return ev.value, nil
	}
	if ev.err != nil {
		c.setState(Failed)
		return nil, fmt.Errorf("fixture %s: %w", c.fixture.Name, ev.err)
	}
	c.setState(Completed)
	c.value = ev.value
	return ev.value, nil
}

// finish resumes a suspended fixture and runs its cleanup.
func (c *coroutine) finish(ctx context.Context, out io.Writer) error {
	if c.currentState() != Suspended {
		return nil
	}
	c.setPhase(ctx, out)
	close(c.resume)

	ev, err := c.await(ctx)
	if err != nil {
		c.setState(Failed)
		return fmt.Errorf("teardown: %w", err)
	}
	if ev.kind == eventYield {
		c.setState(Violated)
		c.detach()
		return &BadRequestError{Fixture: c.fixture.Name}
	}
	if ev.err != nil {
		c.setState(Failed)
		return ev.err
	}
	c.setState(Completed)
	return nil
}
