package scripting

import (
	"bufio"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"snektest/internal/params"
	"snektest/internal/suite"
)

// paramValue is the result of param(value, name=...).
type paramValue struct {
	name  string
	value starlark.Value
}

var _ starlark.HasAttrs = (*paramValue)(nil)

func (p *paramValue) String() string {
	if p.name == "" {
		return fmt.Sprintf("param(%s)", p.value)
	}
	return fmt.Sprintf("param(%s, name=%q)", p.value, p.name)
}
func (p *paramValue) Type() string          { return "param" }
func (p *paramValue) Freeze()               { p.value.Freeze() }
func (p *paramValue) Truth() starlark.Bool  { return starlark.True }
func (p *paramValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: param") }

func (p *paramValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "value":
		return p.value, nil
	case "name":
		return starlark.String(p.displayName()), nil
	}
	return nil, nil
}

func (p *paramValue) AttrNames() []string { return []string{"name", "value"} }

func (p *paramValue) displayName() string {
	if p.name != "" {
		return p.name
	}
	return displayName(p.value)
}

func displayName(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// paramValueOf turns an element of a params list into a matrix value.
func paramValueOf(v starlark.Value) params.Value {
	if p, ok := v.(*paramValue); ok {
		return params.Named(p.displayName(), p.value)
	}
	return params.Named(displayName(v), v)
}

// fixtureValue is the Starlark face of a fixture declaration.
type fixtureValue struct {
	fixture *suite.Fixture
}

func (f *fixtureValue) String() string {
	return fmt.Sprintf("<%s fixture %s>", f.fixture.Scope, f.fixture.Name)
}
func (f *fixtureValue) Type() string { return "fixture" }
func (f *fixtureValue) Freeze()               {}
func (f *fixtureValue) Truth() starlark.Bool  { return starlark.True }
func (f *fixtureValue) Hash() (uint32, error) { return starlark.String(f.fixture.ID).Hash() }

func fixtureArg(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (*suite.Fixture, error) {
	var f *fixtureValue
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &f); err != nil {
		return nil, err
	}
	return f.fixture, nil
}

// contextValue is the test context handed to Starlark test functions.
type contextValue struct {
	tc     suite.TestContext
	params starlark.Tuple
	stdin  *bufio.Reader
}

var _ starlark.HasAttrs = (*contextValue)(nil)

func newContextValue(tc suite.TestContext, values starlark.Tuple) *contextValue {
	return &contextValue{tc: tc, params: values}
}

func (c *contextValue) String() string { return fmt.Sprintf("<test context %s>", c.tc.Name()) }
func (c *contextValue) Type() string   { return "test_context" }
func (c *contextValue) Freeze()               {}
func (c *contextValue) Truth() starlark.Bool  { return starlark.True }
func (c *contextValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: test_context") }

func (c *contextValue) AttrNames() []string {
	return []string{"fixture", "input", "name", "params", "warn"}
}

func (c *contextValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(c.tc.Name()), nil
	case "params":
		return c.params, nil
	case "fixture":
		return starlark.NewBuiltin("fixture", c.fixture), nil
	case "warn":
		return starlark.NewBuiltin("warn", c.warn), nil
	case "input":
		return starlark.NewBuiltin("input", c.input), nil
	}
	return nil, nil
}

func (c *contextValue) fixture(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, err := fixtureArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := c.tc.Resolve(f)
	if err != nil {
		return nil, err
	}
	return toStarlark(v)
}

func (c *contextValue) warn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	c.tc.Warn(msg)
	return starlark.None, nil
}

// input reads one line from the real stdin, which ends output capture for
// the rest of the test.
func (c *contextValue) input(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prompt string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &prompt); err != nil {
		return nil, err
	}
	if c.stdin == nil {
		c.stdin = bufio.NewReader(c.tc.Stdin())
	}
	if prompt != "" {
		fmt.Fprint(c.tc.Stdout(), prompt)
	}
	line, err := c.stdin.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(strings.TrimRight(line, "\r\n")), nil
}

// handleValue is the handle handed to Starlark fixture functions.
type handleValue struct {
	handle suite.FixtureHandle
}

var _ starlark.HasAttrs = (*handleValue)(nil)

func (h *handleValue) String() string { return "<fixture handle>" }
func (h *handleValue) Type() string   { return "fixture_handle" }
func (h *handleValue) Freeze()               {}
func (h *handleValue) Truth() starlark.Bool  { return starlark.True }
func (h *handleValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: fixture_handle") }

func (h *handleValue) AttrNames() []string { return []string{"fixture", "provide"} }

func (h *handleValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "provide":
		return starlark.NewBuiltin("provide", h.provide), nil
	case "fixture":
		return starlark.NewBuiltin("fixture", h.fixture), nil
	}
	return nil, nil
}

func (h *handleValue) provide(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &v); err != nil {
		return nil, err
	}
	if err := h.handle.Provide(v); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (h *handleValue) fixture(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	f, err := fixtureArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	v, err := h.handle.Resolve(f)
	if err != nil {
		return nil, err
	}
	return toStarlark(v)
}

// toStarlark converts a fixture or parameter value produced by Go code.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, s := range x {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	default:
		return nil, fmt.Errorf("cannot use %T as a Starlark value", v)
	}
}
