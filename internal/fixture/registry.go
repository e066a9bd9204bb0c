package fixture

import (
	"context"
	"fmt"
	"io"
	"strings"

	"snektest/internal/results"
	"snektest/internal/suite"
)

// ScopeError reports a session fixture depending on a function fixture.
type ScopeError struct {
	Fixture    string
	Dependency string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("session fixture %s cannot depend on function fixture %s", e.Fixture, e.Dependency)
}

// CycleError reports fixtures that depend on each other.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "fixture dependency cycle: " + strings.Join(e.Chain, " -> ")
}

// Registry routes fixture resolution to the pool of the fixture's scope. It
// owns the session pool; function pools belong to one test execution each.
type Registry struct {
	session *Pool
}

// NewRegistry creates a registry with an empty session pool.
func NewRegistry() *Registry {
	return &Registry{session: NewPool(suite.ScopeSession)}
}

// NewFunctionPool creates the pool of one test execution.
func (r *Registry) NewFunctionPool() *Pool {
	return NewPool(suite.ScopeFunction)
}

// Resolve returns the value of f from the session pool or from fn. Fixtures
// resolved by f while it sets up come from the same pools.
func (r *Registry) Resolve(ctx context.Context, f *suite.Fixture, fn *Pool, out io.Writer) (any, error) {
	return r.resolve(ctx, f, fn, out, nil)
}

func (r *Registry) resolve(ctx context.Context, f *suite.Fixture, fn *Pool, out io.Writer, chain []string) (any, error) {
	for _, id := range chain {
		if id == f.ID {
			return nil, &CycleError{Chain: append(append([]string(nil), chain...), f.ID)}
		}
	}

	next := append(chain[:len(chain):len(chain)], f.ID)
	deps := func(dep *suite.Fixture) (any, error) {
		if f.Scope == suite.ScopeSession && dep.Scope == suite.ScopeFunction {
			return nil, &ScopeError{Fixture: f.Name, Dependency: dep.Name}
		}
		return r.resolve(ctx, dep, fn, out, next)
	}

	if f.Scope == suite.ScopeSession {
		return r.session.resolve(ctx, f, out, deps)
	}
	return fn.resolve(ctx, f, out, deps)
}

// Session exposes the session pool.
func (r *Registry) Session() *Pool {
	return r.session
}

// TeardownSession tears down every session fixture in reverse setup order.
func (r *Registry) TeardownSession(ctx context.Context, out io.Writer) []results.TeardownFailure {
	return r.session.TeardownAll(ctx, out)
}
