// Package scripting loads test modules written in Starlark.
//
// A test file is a Starlark program. Its top-level code runs once, at
// collection, with these predeclared names:
//
//	test(fn, params=[], marks=[], kind="sync")   register a test
//	fixture(fn, scope="function", kind="sync")   declare a fixture
//	session_fixture(fn, kind="sync")             declare a session fixture
//	param(value, name=None)                      a named parameter value
//	assert                                       the assertion module
//	struct, json                                 the usual helpers
//
// Top-level functions named test_* are tests even when not registered.
//
// load("helpers.star", "name") loads a helper module relative to the loading
// file's directory, or relative to the root when the module starts with
// "//". Each helper runs once per Loader and may declare fixtures; tests it
// registers are ignored.
// A test function with parameters receives the test context followed by the
// values of its parameter combination. A fixture function with a parameter
// receives a handle and calls handle.provide(value) once; code after it is
// cleanup.
package scripting

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"snektest/internal/params"
	"snektest/internal/suite"
	"snektest/pkg/logging"
)

// Extension of Starlark test files.
const Extension = ".star"

const registryKey = "snektest.registry"

// Loader loads .star test files. Helper modules pulled in with load() are
// cached for the lifetime of the Loader.
type Loader struct {
	// Predeclared names are added to every module, after the built-ins.
	Predeclared starlark.StringDict

	mu      sync.Mutex
	helpers map[string]*helper
}

type helper struct {
	loading bool
	globals starlark.StringDict
	err     error
}

// NewLoader creates a Starlark loader.
func NewLoader() *Loader {
	return &Loader{helpers: make(map[string]*helper)}
}

func (l *Loader) Accepts(p string) bool {
	return strings.HasSuffix(p, Extension)
}

// Load executes the file's top-level code and returns its tests.
func (l *Loader) Load(ctx context.Context, fsys fs.FS, p string) (*suite.Module, error) {
	globals, reg, err := l.exec(ctx, fsys, p)
	if err != nil {
		return nil, wrapError(err)
	}

	reg.discover(globals)
	return &suite.Module{
		Path:  p,
		Tests: reg.tests(),
		Eval:  &evaluator{path: p, globals: globals},
	}, nil
}

// exec runs the top-level code of the module at p and freezes its globals.
func (l *Loader) exec(ctx context.Context, fsys fs.FS, p string) (starlark.StringDict, *registry, error) {
	src, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, nil, err
	}

	reg := &registry{path: p, registered: make(map[*starlark.Function]*suite.Test)}
	thread := &starlark.Thread{
		Name: p,
		Print: func(_ *starlark.Thread, msg string) {
			logging.Info("Collector", "%s: %s", p, msg)
		},
		Load: func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
			return l.loadHelper(ctx, fsys, thread.Name, module)
		},
	}
	thread.SetLocal(registryKey, reg)
	stop := context.AfterFunc(ctx, func() { thread.Cancel("collection cancelled") })
	defer stop()

	globals, err := starlark.ExecFile(thread, p, src, l.predeclared())
	if err != nil {
		return nil, nil, err
	}
	globals.Freeze()
	return globals, reg, nil
}

// loadHelper serves a load statement of the module at from.
func (l *Loader) loadHelper(ctx context.Context, fsys fs.FS, from, module string) (starlark.StringDict, error) {
	p, err := resolveLoad(from, module)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if h, ok := l.helpers[p]; ok {
		l.mu.Unlock()
		if h.loading {
			return nil, fmt.Errorf("load cycle through %s", p)
		}
		return h.globals, h.err
	}
	h := &helper{loading: true}
	l.helpers[p] = h
	l.mu.Unlock()

	logging.Debug("Collector", "loading helper %s for %s", p, from)
	globals, _, err := l.exec(ctx, fsys, p)

	l.mu.Lock()
	h.loading, h.globals, h.err = false, globals, err
	l.mu.Unlock()
	return globals, err
}

func resolveLoad(from, module string) (string, error) {
	var p string
	if rooted, ok := strings.CutPrefix(module, "//"); ok {
		p = path.Clean(rooted)
	} else {
		p = path.Join(path.Dir(from), module)
	}
	if !fs.ValidPath(p) || !strings.HasSuffix(p, Extension) {
		return "", fmt.Errorf("invalid module %q: want a %s file inside the test root", module, Extension)
	}
	return p, nil
}

func (l *Loader) predeclared() starlark.StringDict {
	predeclared := starlark.StringDict{
		"test":            starlark.NewBuiltin("test", registerTest),
		"fixture":         starlark.NewBuiltin("fixture", declareFixture),
		"session_fixture": starlark.NewBuiltin("session_fixture", declareSessionFixture),
		"param":           starlark.NewBuiltin("param", newParam),
		"assert":          assertModule,
		"struct":          starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":            json.Module,
	}
	for k, v := range l.Predeclared {
		predeclared[k] = v
	}
	return predeclared
}

// registry accumulates the declarations of one module while its top-level
// code runs.
type registry struct {
	path       string
	order      []*starlark.Function
	registered map[*starlark.Function]*suite.Test
}

func (r *registry) add(fn *starlark.Function, t *suite.Test) {
	if _, ok := r.registered[fn]; !ok {
		r.order = append(r.order, fn)
	}
	r.registered[fn] = t
}

// discover registers unregistered top-level test_* functions.
func (r *registry) discover(globals starlark.StringDict) {
	for _, name := range globals.Keys() {
		fn, ok := globals[name].(*starlark.Function)
		if !ok || !strings.HasPrefix(name, "test_") {
			continue
		}
		if _, done := r.registered[fn]; done {
			continue
		}
		r.add(fn, suite.NewTest(fn.Name(), suite.Sync, testFunc(fn)))
	}
}

// tests returns the module's tests in source order.
func (r *registry) tests() []*suite.Test {
	fns := append([]*starlark.Function(nil), r.order...)
	sort.SliceStable(fns, func(i, j int) bool {
		return fns[i].Position().Line < fns[j].Position().Line
	})
	out := make([]*suite.Test, len(fns))
	for i, fn := range fns {
		out[i] = r.registered[fn]
	}
	return out
}

func registryOf(thread *starlark.Thread, b *starlark.Builtin) (*registry, error) {
	reg, ok := thread.Local(registryKey).(*registry)
	if !ok {
		return nil, fmt.Errorf("%s: may only be called at the top level of a test file", b.Name())
	}
	return reg, nil
}

func parseKind(b *starlark.Builtin, kind string) (suite.Kind, error) {
	switch kind {
	case "", "sync":
		return suite.Sync, nil
	case "async":
		return suite.Async, nil
	default:
		return suite.Sync, fmt.Errorf("%s: kind must be \"sync\" or \"async\", got %q", b.Name(), kind)
	}
}

func registerTest(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn     *starlark.Function
		lists  *starlark.List
		marks  *starlark.List
		kindIn string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "params?", &lists, "marks?", &marks, "kind?", &kindIn); err != nil {
		return nil, err
	}
	reg, err := registryOf(thread, b)
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(b, kindIn)
	if err != nil {
		return nil, err
	}

	var opts []suite.Option
	if lists != nil {
		values, err := paramLists(b, lists)
		if err != nil {
			return nil, err
		}
		opts = append(opts, suite.WithParams(values...))
	}
	if marks != nil {
		markers, err := stringList(b, "marks", marks)
		if err != nil {
			return nil, err
		}
		opts = append(opts, suite.WithMarkers(markers...))
	}

	reg.add(fn, suite.NewTest(fn.Name(), kind, testFunc(fn), opts...))
	return fn, nil
}

func paramLists(b *starlark.Builtin, lists *starlark.List) ([][]params.Value, error) {
	out := make([][]params.Value, 0, lists.Len())
	for i := 0; i < lists.Len(); i++ {
		iterable, ok := lists.Index(i).(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: params[%d] is %s, want a list of values", b.Name(), i, lists.Index(i).Type())
		}
		var values []params.Value
		iter := iterable.Iterate()
		var v starlark.Value
		for iter.Next(&v) {
			values = append(values, paramValueOf(v))
		}
		iter.Done()
		out = append(out, values)
	}
	return out, nil
}

func stringList(b *starlark.Builtin, what string, list *starlark.List) ([]string, error) {
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: %s[%d] is %s, want string", b.Name(), what, i, list.Index(i).Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func declareFixture(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn      *starlark.Function
		scopeIn = "function"
		kindIn  string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "scope?", &scopeIn, "kind?", &kindIn); err != nil {
		return nil, err
	}
	var scope suite.Scope
	switch scopeIn {
	case "function":
		scope = suite.ScopeFunction
	case "session":
		scope = suite.ScopeSession
	default:
		return nil, fmt.Errorf("%s: scope must be \"function\" or \"session\", got %q", b.Name(), scopeIn)
	}
	return newFixture(thread, b, fn, scope, kindIn)
}

func declareSessionFixture(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn     *starlark.Function
		kindIn string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "kind?", &kindIn); err != nil {
		return nil, err
	}
	return newFixture(thread, b, fn, suite.ScopeSession, kindIn)
}

func newFixture(thread *starlark.Thread, b *starlark.Builtin, fn *starlark.Function, scope suite.Scope, kindIn string) (starlark.Value, error) {
	reg, err := registryOf(thread, b)
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(b, kindIn)
	if err != nil {
		return nil, err
	}
	f := &suite.Fixture{
		ID:    reg.path + "::" + fn.Name(),
		Name:  fn.Name(),
		Scope: scope,
		Kind:  kind,
		Func:  fixtureFunc(fn),
	}
	return &fixtureValue{fixture: f}, nil
}

func newParam(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		value starlark.Value
		name  starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "name?", &name); err != nil {
		return nil, err
	}
	p := &paramValue{value: value}
	if name != starlark.None {
		s, ok := starlark.AsString(name)
		if !ok {
			return nil, fmt.Errorf("%s: name must be a string, got %s", b.Name(), name.Type())
		}
		p.name = s
	}
	return p, nil
}

// newThread creates the thread of one call. out is consulted on every print
// so fixtures print to the sink of their current phase.
func newThread(name string, out func() io.Writer) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out(), msg)
		},
	}
}

func testFunc(fn *starlark.Function) suite.TestFunc {
	return func(tc suite.TestContext) error {
		thread := newThread(tc.Name(), tc.Stdout)
		stop := context.AfterFunc(tc.Context(), func() { thread.Cancel("test cancelled") })
		defer stop()

		values := starlarkValues(tc.Params())
		var args starlark.Tuple
		if fn.NumParams() > 0 {
			args = append(starlark.Tuple{newContextValue(tc, values)}, values...)
		}
		_, err := starlark.Call(thread, fn, args, nil)
		return wrapError(err)
	}
}

func fixtureFunc(fn *starlark.Function) suite.FixtureFunc {
	return func(h suite.FixtureHandle) (any, error) {
		thread := newThread(fn.Name(), h.Stdout)

		var args starlark.Tuple
		if fn.NumParams() > 0 {
			args = starlark.Tuple{&handleValue{handle: h}}
		}
		v, err := starlark.Call(thread, fn, args, nil)
		if err != nil {
			return nil, wrapError(err)
		}
		return v, nil
	}
}

func starlarkValues(combo params.Combination) starlark.Tuple {
	out := make(starlark.Tuple, len(combo))
	for i, v := range combo {
		sv, err := toStarlark(v.Value)
		if err != nil {
			sv = starlark.String(fmt.Sprint(v.Value))
		}
		out[i] = sv
	}
	return out
}

// evaluator evaluates debugger expressions against a module's globals.
type evaluator struct {
	path    string
	globals starlark.StringDict
}

func (e *evaluator) Eval(expr string) (string, error) {
	thread := &starlark.Thread{Name: e.path + " (debugger)"}
	v, err := starlark.Eval(thread, "<debugger>", expr, e.globals)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
