// Package fixture implements the fixture lifecycle: lazy setup on first use
// within a scope, value caching, and reverse-order teardown.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"snektest/internal/results"
	"snektest/internal/suite"
	"snektest/pkg/logging"
)

// ErrPoolClosed is returned when a fixture is requested from a pool that was
// already torn down, e.g. by a test body that outlived its execution.
var ErrPoolClosed = errors.New("fixture scope already torn down")

// Pool holds the fixture instances of one scope.
type Pool struct {
	scope suite.Scope

	mu      sync.Mutex
	group   singleflight.Group
	entries map[string]*coroutine
	order   []*coroutine
	closed  bool
}

// NewPool creates an empty pool for scope.
func NewPool(scope suite.Scope) *Pool {
	return &Pool{scope: scope, entries: make(map[string]*coroutine)}
}

// Resolve returns the value of f, running its setup on first use. Concurrent
// first uses share one setup. A failed setup is not cached.
func (p *Pool) Resolve(ctx context.Context, f *suite.Fixture, out io.Writer) (any, error) {
	return p.resolve(ctx, f, out, nil)
}

func (p *Pool) resolve(ctx context.Context, f *suite.Fixture, out io.Writer, deps Resolver) (any, error) {
	if v, ok, err := p.cached(f.ID); ok || err != nil {
		return v, err
	}

	v, err, _ := p.group.Do(f.ID, func() (any, error) {
		if v, ok, err := p.cached(f.ID); ok || err != nil {
			return v, err
		}

		logging.Debug("Fixtures", "setting up %s fixture %s", p.scope, f.Name)
		co := newCoroutine(f, deps)
		value, err := co.start(ctx, out)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			// The pool was torn down while this setup ran; nobody else will
			// clean the fixture up.
			if err := co.finish(context.WithoutCancel(ctx), out); err != nil {
				logging.Warn("Fixtures", "teardown of late %s fixture %s failed: %v", p.scope, f.Name, err)
			}
			return nil, fmt.Errorf("fixture %s: %w", f.Name, ErrPoolClosed)
		}
		p.entries[f.ID] = co
		p.order = append(p.order, co)
		p.mu.Unlock()
		return value, nil
	})
	return v, err
}

func (p *Pool) cached(id string) (any, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrPoolClosed
	}
	if co, ok := p.entries[id]; ok {
		return co.value, true, nil
	}
	return nil, false, nil
}

// Len is the number of fixtures set up in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// TeardownAll tears the pool's fixtures down in reverse setup order. Every
// fixture is attempted; failures are collected, not returned early. The pool
// is closed afterwards: later requests fail with ErrPoolClosed.
func (p *Pool) TeardownAll(ctx context.Context, out io.Writer) []results.TeardownFailure {
	p.mu.Lock()
	order := p.order
	p.order = nil
	p.entries = make(map[string]*coroutine)
	p.closed = true
	p.mu.Unlock()

	var failures []results.TeardownFailure
	for i := len(order) - 1; i >= 0; i-- {
		co := order[i]
		err := co.finish(ctx, out)
		if err == nil {
			continue
		}

		var bad *BadRequestError
		failure := results.TeardownFailure{
			Fixture:   co.fixture.Name,
			Err:       err,
			Trace:     results.TraceOf(err),
			Violation: errors.As(err, &bad),
		}
		logging.Warn("Fixtures", "teardown of %s fixture %s failed: %v", p.scope, co.fixture.Name, err)
		failures = append(failures, failure)
	}
	return failures
}
