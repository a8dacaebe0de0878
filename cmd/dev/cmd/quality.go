package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func devtoolCmd(use, short string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return devtoolCmd("test", "Run unit tests of the driver, transports and cli", func() error { return test.Test() })
}

func LintCmd() *cobra.Command {
	return devtoolCmd("lint", "Run linters", func() error { return test.Lint() })
}

// IntegrationTestCmd runs tests that need a sensor on a real bus.
func IntegrationTestCmd() *cobra.Command {
	return devtoolCmd("integration-test", "Run hardware integration tests", func() error { return test.Integ() })
}
