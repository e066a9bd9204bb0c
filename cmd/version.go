package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const starlarkModule = "go.starlark.net"

// newVersionCmd creates the command printing the snektest version together
// with the toolchain and Starlark interpreter it was built with.
func newVersionCmd() *cobra.Command {
	var short bool
	c := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of snektest",
		Long: `Print the version number of snektest.

The full output also names the Go toolchain, the Starlark interpreter
version test files run on, and the platform.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, rootCmd.Version)
				return
			}
			fmt.Fprintf(out, "snektest version %s\n", rootCmd.Version)
			fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  starlark: %s\n", moduleVersion(starlarkModule))
			fmt.Fprintf(out, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	c.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return c
}

// moduleVersion looks up the version of a dependency in the binary's build
// information.
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "unknown"
}
