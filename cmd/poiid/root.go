package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poiid",
		Short: "Identify persons of interest in the Enron financial data",
		Long: `poiid engineers e-mail ratio features, selects predictors by importance,
robust-scales them and tunes a classifier with stratified cross-validation.

The fitted classifier, the final dataset and the feature list are written
as JSON for evaluation.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newFamiliesCommand())

	return cmd
}
