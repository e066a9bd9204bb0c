package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snektest/internal/collector"
	"snektest/internal/config"
	"snektest/internal/selector"
	"snektest/internal/session"
)

const passingTests = `
def test_ok():
    assert.eq(1 + 1, 2)

def check_fast(ctx, n):
    assert.true(n > 0)

test(check_fast, params = [[1, 2]], marks = ["fast"])
`

const failingTests = `
def test_bad():
    print("diagnostics")
    assert.eq(1, 2)
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command in dir and returns its output.
func executeCommand(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	if rootCmd.Version != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(rootCmd.Use, "snektest"))
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, expected := range []string{"list", "version"} {
		assert.True(t, found[expected], "expected subcommand %s", expected)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitCodeSuccess},
		{"tests failed", &TestsFailedError{}, ExitCodeTestsFailed},
		{"wrapped tests failed", fmt.Errorf("run: %w", &TestsFailedError{}), ExitCodeTestsFailed},
		{"argument error", &selector.ArgsError{Reason: "bad"}, ExitCodeError},
		{"collection error", &collector.CollectionError{Path: "x", Err: errors.New("boom")}, ExitCodeError},
		{"configuration error", &config.ConfigurationError{ErrorType: config.ErrorTypeSchema}, ExitCodeError},
		{"interrupted", session.ErrInterrupted, ExitCodeError},
		{"anything else", errors.New("internal"), ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestPrintError(t *testing.T) {
	configErr := &config.ConfigurationError{
		FilePath:    "snektest.yaml",
		ErrorType:   config.ErrorTypeValidation,
		Message:     "invalid configuration",
		Suggestions: []string{"set queue_size to at least 1"},
	}

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    []string
		notWant []string
	}{
		{"tests failed prints nothing", &TestsFailedError{}, true, nil, []string{"error:"}},
		{"single line", errors.New("boom"), false, []string{"error: boom\n"}, nil},
		{"config error", configErr, false, []string{"error: [validation] snektest.yaml"}, []string{"Suggestions"}},
		{"verbose config error", fmt.Errorf("load: %w", configErr), true, []string{"Configuration Error in snektest.yaml", "set queue_size to at least 1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err, tt.verbose)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestRunPassingSuite(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tests/test_ok.star": passingTests})

	out, err := executeCommand(t, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "tests/test_ok.star::test_ok ... ✅ PASSED")
	assert.Contains(t, out, "3 passed in ")
	assert.NotContains(t, out, "FAILURES")
}

func TestRunFailingSuite(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tests/test_ok.star":  passingTests,
		"tests/test_bad.star": failingTests,
	})

	out, err := executeCommand(t, dir, "tests")
	var failed *TestsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Counts.Failed)
	assert.Equal(t, ExitCodeTestsFailed, getExitCode(err))

	assert.Contains(t, out, "FAILURES")
	assert.Contains(t, out, "diagnostics")
	assert.Contains(t, out, "1 failed, 3 passed")
}

func TestRunNoCapture(t *testing.T) {
	dir := writeFiles(t, map[string]string{"test_bad.star": failingTests})

	out, err := executeCommand(t, dir, "-s")
	require.Error(t, err)
	assert.Less(t, strings.Index(out, "diagnostics"), strings.Index(out, "FAILURES"),
		"uncaptured output is printed while the test runs")
}

func TestRunFilterAndMark(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tests/test_ok.star": passingTests})

	out, err := executeCommand(t, dir, "tests/test_ok.star::check_fast[2]")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")

	out, err = executeCommand(t, dir, "-m", "fast")
	require.NoError(t, err)
	assert.Contains(t, out, "2 passed")
}

func TestRunJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"test_ok.star": passingTests})

	out, err := executeCommand(t, dir, "--json")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)
	assert.EqualValues(t, 3, summary["passed"])
	assert.EqualValues(t, 0, summary["session_teardown_failed"])
	assert.Len(t, summary["tests"], 3)
}

func TestRunReportFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"test_ok.star": passingTests})

	_, err := executeCommand(t, dir, "--report", "reports", "--report-name", "latest.json")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "reports", "latest.json"))
}

func TestRunArgumentErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"test_ok.star": passingTests})

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--frobnicate"}},
		{"missing path", []string{"test_missing.star"}},
		{"malformed filter", []string{"test_ok.star::test_ok[1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, dir, tt.args...)
			var argsErr *selector.ArgsError
			require.ErrorAs(t, err, &argsErr)
			assert.Equal(t, ExitCodeError, getExitCode(err))
		})
	}
}

func TestRunCollectionError(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"test_ok.star":     passingTests,
		"test_broken.star": "def test_x(:\n",
	})

	_, err := executeCommand(t, dir)
	var collectErr *collector.CollectionError
	require.ErrorAs(t, err, &collectErr)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestRunConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tests/test_ok.star":   passingTests,
		"other/test_bad.star":  failingTests,
		config.DefaultFileName: "paths: [tests]\nmark: fast\n",
	})

	out, err := executeCommand(t, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 passed")

	// Flags override the file.
	out, err = executeCommand(t, dir, "--mark", "")
	require.NoError(t, err)
	assert.Contains(t, out, "3 passed")
}

func TestRunInvalidConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"test_ok.star":         passingTests,
		config.DefaultFileName: "queue_size: 0\n",
	})

	_, err := executeCommand(t, dir)
	var ce *config.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestListCommand(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tests/test_ok.star": passingTests})

	out, err := executeCommand(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "test_ok")
	assert.Contains(t, out, "check_fast")
	assert.Contains(t, out, "3 tests collected")

	out, err = executeCommand(t, dir, "list", "-m", "fast")
	require.NoError(t, err)
	assert.Contains(t, out, "2 tests collected")
}
