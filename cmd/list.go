package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"snektest/internal/collector"
	"snektest/internal/config"
	"snektest/internal/reporting"
	"snektest/internal/scripting"
	"snektest/internal/session"
)

// newListCmd creates the command that prints the collected tests without
// running them.
func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list [filters...]",
		Short: "List the tests the filters select",
		Long: `List collects the test files below the given filters and prints every
test unit with its parameter key, kind and markers. Module-level code of
each test file runs, but no test does.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c, cwd)
			if err != nil {
				return err
			}
			setupOutput(c, cfg)
			if len(args) == 0 {
				args = cfg.Paths
			}

			s := session.New(session.Options{
				Args:      args,
				Root:      cwd,
				FS:        os.DirFS(cwd),
				Collector: collectorOptions(cfg),
			}, reporting.Multi(), nil, scripting.NewLoader())

			items, err := s.List(c.Context())
			if err != nil {
				return err
			}
			reporting.PrintCollected(c.OutOrStdout(), items)
			return nil
		},
	}
	listCmd.Flags().StringVarP(&runMark, "mark", "m", "", "Only list tests carrying this marker")
	return listCmd
}

func collectorOptions(cfg config.Config) collector.Options {
	return collector.Options{
		Prefix: cfg.TestPrefix,
		Ignore: cfg.Ignore,
		Mark:   cfg.Mark,
	}
}
