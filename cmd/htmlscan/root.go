package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns fresh commands so
// tests can run them independently.
func newRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "htmlscan",
		Short: "Inspect how pages stream through the body splicer",
		Long: `htmlscan runs HTML through the same streaming tokenizer and body
detector the proxy uses.

It shows where fragments would be spliced and checks that a fragment is
safe to splice.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newCheckCmd())
	return rootCmd
}
