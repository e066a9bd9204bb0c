package engine

import (
	"context"
	"io"

	"snektest/internal/capture"
	"snektest/internal/fixture"
	"snektest/internal/params"
	"snektest/internal/suite"
)

// testContext is the suite.TestContext of one execution.
type testContext struct {
	ctx      context.Context
	item     suite.Item
	registry *fixture.Registry
	pool     *fixture.Pool
	out      *capture.Capture
}

var _ suite.TestContext = (*testContext)(nil)

func (c *testContext) Context() context.Context   { return c.ctx }
func (c *testContext) Name() string               { return c.item.Name() }
func (c *testContext) Params() params.Combination { return c.item.Combination }
func (c *testContext) Stdout() io.Writer          { return c.out.Stdout() }
func (c *testContext) Stdin() io.Reader           { return c.out.Stdin() }
func (c *testContext) Warn(message string)        { c.out.Warn(message) }

func (c *testContext) Resolve(f *suite.Fixture) (any, error) {
	return c.registry.Resolve(c.ctx, f, c.pool, c.out.Stdout())
}
