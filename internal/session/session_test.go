package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snektest/internal/collector"
	"snektest/internal/engine"
	"snektest/internal/reporting"
	"snektest/internal/results"
	"snektest/internal/scripting"
	"snektest/internal/selector"
	"snektest/internal/suite"
)

// helpers.star is not a test file and must not be collected.
const sharedFixtures = `
def _server(fx):
    print("server up")
    fx.provide("server-1")
    print("server down")

server = session_fixture(_server)
`

const testMath = `
def _numbers(fx):
    fx.provide([1, 2, 3])

numbers = fixture(_numbers)

def test_sum(ctx):
    assert.eq(sum_of(ctx.fixture(numbers)), 6)

def test_wrong(ctx):
    assert.eq(sum_of(ctx.fixture(numbers)), 7)

def check_pair(ctx, a, b):
    assert.true(a < b)

test(check_pair, params = [[1, 2], [param(10, name = "ten")]], marks = ["fast"])

def sum_of(values):
    total = 0
    for v in values:
        total += v
    return total
`

const testServer = `
def _server(fx):
    print("server up")
    fx.provide("server-1")
    print("server down")

server = session_fixture(_server)

def test_first(ctx):
    assert.eq(ctx.fixture(server), "server-1")

def test_second(ctx):
    assert.eq(ctx.fixture(server), "server-1")
`

type recordingReporter struct {
	mu       sync.Mutex
	started  []string
	finished []results.TestResult
	summary  *results.RunSummary
	runInfo  *reporting.RunInfo
}

func (r *recordingReporter) RunStarted(info reporting.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runInfo = &info
}

func (r *recordingReporter) TestStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *recordingReporter) TestFinished(res results.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

func (r *recordingReporter) RunFinished(s *results.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = s
}

func newSession(fsys fstest.MapFS, args []string, rep *recordingReporter, mutate ...func(*Options)) *Session {
	opts := Options{
		Args:   args,
		Root:   "/work",
		FS:     fsys,
		Engine: engine.Options{CaptureOutput: true},
		Stdout: &bytes.Buffer{},
		Stdin:  strings.NewReader(""),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(opts, rep, nil, scripting.NewLoader())
}

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"tests/test_math.star":   {Data: []byte(testMath)},
		"tests/test_server.star": {Data: []byte(testServer)},
		"tests/helpers.star":     {Data: []byte(sharedFixtures)},
	}
}

func TestRunAggregatesResults(t *testing.T) {
	rep := &recordingReporter{}
	summary, err := newSession(sampleFS(), nil, rep).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, rep.summary)
	assert.Same(t, summary, rep.summary)
	assert.Equal(t, results.Counts{Passed: 5, Failed: 1}, summary.Counts)
	assert.True(t, summary.Counts.HasFailures())
	assert.Equal(t, []string{"."}, rep.runInfo.Filters)

	var names []string
	for _, res := range summary.Results {
		names = append(names, res.Name)
	}
	assert.Equal(t, []string{
		"tests/test_math.star::test_sum",
		"tests/test_math.star::test_wrong",
		"tests/test_math.star::check_pair[1,ten]",
		"tests/test_math.star::check_pair[2,ten]",
		"tests/test_server.star::test_first",
		"tests/test_server.star::test_second",
	}, names)
	assert.Equal(t, names, rep.started)
}

func TestRunSessionFixtureSharedAndTornDownOnce(t *testing.T) {
	rep := &recordingReporter{}
	summary, err := newSession(sampleFS(), []string{"tests/test_server.star"}, rep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts.Passed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "server up\n", summary.Results[0].Output)
	assert.Empty(t, summary.Results[1].Output)
	assert.Equal(t, "server down\n", summary.SessionOutput)
}

func TestRunFilters(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		want  int
		mark  string
		names []string
	}{
		{name: "function", args: []string{"tests/test_math.star::test_sum"}, want: 1},
		{name: "parameter key", args: []string{"tests/test_math.star::check_pair[2,ten]"}, want: 1},
		{name: "absolute path", args: []string{"/work/tests/test_server.star"}, want: 2},
		{name: "marker", args: []string{"tests"}, mark: "fast", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReporter{}
			s := newSession(sampleFS(), tt.args, rep, func(o *Options) { o.Collector.Mark = tt.mark })
			summary, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, summary.Results, tt.want)
		})
	}
}

func TestRunArgsError(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"tests/test_missing.star"}},
		{"outside root", []string{"../elsewhere"}},
		{"function on directory", []string{"tests::test_sum"}},
		{"bad brackets", []string{"tests/test_math.star::check_pair[1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReporter{}
			summary, err := newSession(sampleFS(), tt.args, rep).Run(context.Background())

			var argsErr *selector.ArgsError
			require.ErrorAs(t, err, &argsErr)
			assert.Nil(t, summary)
			assert.Nil(t, rep.runInfo, "nothing starts on an argument error")
		})
	}
}

func TestRunCollectionErrorDoesNotHang(t *testing.T) {
	fsys := sampleFS()
	fsys["tests/test_zbroken.star"] = &fstest.MapFile{Data: []byte("fail(\"module level\")\n")}

	rep := &recordingReporter{}
	done := make(chan error, 1)
	go func() {
		_, err := newSession(fsys, nil, rep, func(o *Options) { o.QueueSize = 1 }).Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		var collectErr *collector.CollectionError
		require.ErrorAs(t, err, &collectErr)
		assert.Equal(t, "tests/test_zbroken.star", collectErr.Path)
		assert.Nil(t, rep.summary, "an aborted run is not reported")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish after a collection error")
	}
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := &recordingReporter{}
	summary, err := newSession(sampleFS(), nil, rep).Run(ctx)

	require.ErrorIs(t, err, ErrInterrupted)
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Same(t, summary, rep.summary, "partial results are still reported")
}

func TestRunDeadlineKeepsPartialResults(t *testing.T) {
	const slowPath = "tests/test_slow.go"
	loader := collector.NewModuleLoader()
	loader.Register(slowPath, func() (*suite.Module, error) {
		mod := &suite.Module{}
		for _, name := range []string{"test_a", "test_b", "test_c", "test_d", "test_e"} {
			mod.Tests = append(mod.Tests, suite.NewTest(name, suite.Sync, func(suite.TestContext) error {
				time.Sleep(50 * time.Millisecond)
				return nil
			}))
		}
		return mod, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rep := &recordingReporter{}
	s := New(Options{
		FS:        fstest.MapFS{slowPath: {Data: []byte("//")}},
		QueueSize: 1,
		Stdout:    &bytes.Buffer{},
		Stdin:     strings.NewReader(""),
	}, rep, nil, loader)

	summary, err := s.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorContains(t, err, context.DeadlineExceeded.Error())
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.NotEmpty(t, summary.Results)
	assert.Less(t, len(summary.Results), 5)
	assert.Same(t, summary, rep.summary, "partial results are still reported")
}

func TestRunAnnouncesReportPath(t *testing.T) {
	rep := &recordingReporter{}
	_, err := newSession(sampleFS(), []string{"tests/test_server.star"}, rep, func(o *Options) {
		o.ReportPath = "reports"
	}).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep.runInfo)
	assert.Equal(t, "reports", rep.runInfo.ReportPath)
}

type stopDebugger struct {
	calls []engine.PostMortem
}

func (d *stopDebugger) PostMortem(_ context.Context, pm engine.PostMortem) error {
	d.calls = append(d.calls, pm)
	return nil
}

func TestRunDebuggerStopsScheduling(t *testing.T) {
	rep := &recordingReporter{}
	dbg := &stopDebugger{}
	s := New(Options{
		Args:   []string{"tests/test_math.star"},
		FS:     sampleFS(),
		Engine: engine.Options{CaptureOutput: true, PDBOnFailure: true},
		Stdout: &bytes.Buffer{},
		Stdin:  strings.NewReader(""),
		// The collector is left blocked on a send when the engine stops.
		QueueSize: 1,
	}, rep, dbg, scripting.NewLoader())

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.DebuggerStopped)
	assert.Len(t, summary.Results, 2)
	require.Len(t, dbg.calls, 1)
	assert.Equal(t, "tests/test_math.star::test_wrong", dbg.calls[0].Test)
}

func TestList(t *testing.T) {
	items, err := newSession(sampleFS(), []string{"tests/test_math.star"}, &recordingReporter{}).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 4)

	_, err = newSession(sampleFS(), []string{"nope"}, &recordingReporter{}).List(context.Background())
	var argsErr *selector.ArgsError
	assert.True(t, errors.As(err, &argsErr))
}
