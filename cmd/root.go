package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"snektest/internal/config"
	"snektest/internal/results"
	"snektest/internal/selector"
)

// Exit codes of the CLI.
const (
	// ExitCodeSuccess indicates a run without failures.
	ExitCodeSuccess = 0
	// ExitCodeTestsFailed indicates a run with failed or erroring tests or
	// fixture teardowns.
	ExitCodeTestsFailed = 1
	// ExitCodeError indicates an argument, configuration, collection or
	// internal error, or an interrupted run.
	ExitCodeError = 2
)

// TestsFailedError is returned when a run completed with failures. The
// report has already been printed.
type TestsFailedError struct {
	Counts results.Counts
}

func (e *TestsFailedError) Error() string {
	return fmt.Sprintf("%d failed, %d error, %d fixture teardown failed, %d session fixture teardown failed",
		e.Counts.Failed, e.Counts.Errors, e.Counts.FixtureTeardownFailed, e.Counts.SessionTeardownFailed)
}

// rootCmd runs the tests selected by its arguments.
var rootCmd = &cobra.Command{
	Use:   "snektest [filters...]",
	Short: "Run Starlark test suites with fixtures and parameters",
	Long: `snektest discovers test files (test_*.star) below the given paths,
runs every test function with its fixtures and parameter combinations,
and reports failures, errors and fixture teardown failures.

Filters have the form path[::function[[params]]]:
  snektest                                   # everything below the working directory
  snektest tests/test_api.star               # one file
  snektest tests/test_api.star::test_login   # one function
  snektest "tests/test_math.star::test_add[1,2]"  # one parameter combination`,
	Args:         cobra.ArbitraryArgs,
	RunE:         runTests,
	SilenceUsage: true,
	// Errors are printed once by Execute.
	SilenceErrors: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "snektest version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err, runVerbose)
		os.Exit(getExitCode(err))
	}
}

// printError prints the single error line of an aborted run. Failed tests
// were already reported. Verbose runs add the context of configuration
// errors.
func printError(w io.Writer, err error, verbose bool) {
	var failed *TestsFailedError
	if errors.As(err, &failed) {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)

	var configErr *config.ConfigurationError
	if verbose && errors.As(err, &configErr) {
		fmt.Fprintln(w, configErr.DetailedError())
	}
}

// getExitCode determines the exit code for an error returned by a command.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var failed *TestsFailedError
	if errors.As(err, &failed) {
		return ExitCodeTestsFailed
	}

	// Arguments, configuration, collection and interrupts.
	return ExitCodeError
}

// flagError turns flag parsing errors into argument errors.
func flagError(_ *cobra.Command, err error) error {
	return &selector.ArgsError{Reason: err.Error(), Err: err}
}

func init() {
	rootCmd.SetFlagErrorFunc(flagError)
	addRunFlags(rootCmd)

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newVersionCmd())
}
