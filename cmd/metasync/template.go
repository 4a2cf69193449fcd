package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/metasync/internal/config"
)

func newTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "template <settings|definition>",
		Short: "Print a starter settings or definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Template(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
