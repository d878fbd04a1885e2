package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ifcflat",
		Short: "Flatten IFC element property trees",
		Long: `ifcflat reads the JSON property tree exported by the IFC viewer and
writes one flat attribute record per element.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newSimplifyCmd())
	root.AddCommand(newVocabularyCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ifcflat version %s (built %s)\n", Version, BuildTime)
		},
	})

	return root
}
