package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
)

func newCheckCmd() *cobra.Command {
	var file bool

	cmd := &cobra.Command{
		Use:   "check FRAGMENT",
		Short: "Check that a fragment can be spliced without changing the page structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markup := []byte(args[0])
			if file {
				src, closeSrc, err := openInput(cmd, args[0])
				if err != nil {
					return err
				}
				defer closeSrc()
				if markup, err = io.ReadAll(src); err != nil {
					return err
				}
			}

			if err := htmlstream.Balanced(markup); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("unbalanced: %v", err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("balanced"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&file, "file", "f", false, "treat FRAGMENT as a file name (- for stdin)")
	return cmd
}
