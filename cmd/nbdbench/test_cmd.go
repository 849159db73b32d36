package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// The test subcommand is reserved for a self-check of the host environment
// (tool availability, kernel NBD support). For now it only reports that
// nothing is implemented behind it.
func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Self-check the host environment (not yet implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "test: nothing to do yet")
			return err
		},
	}
}
