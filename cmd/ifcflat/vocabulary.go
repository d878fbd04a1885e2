package main

import (
	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/spf13/cobra"
)

func newVocabularyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocabulary",
		Short: "Print the built-in vocabulary as YAML",
		Long: `Print the built-in vocabulary as YAML. Edit the output and pass it back
with --vocabulary, or point the server's VocabularyFile setting at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return extract.DefaultVocabulary().Encode(cmd.OutOrStdout())
		},
	}
}
