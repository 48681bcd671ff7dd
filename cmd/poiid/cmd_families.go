package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/tune"
)

func newFamiliesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List classifier families and their tuning defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FAMILY\tSCORING\tFOLDS\tCANDIDATES\tFIXED")
			for _, f := range tune.Families() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", f.Name, f.Scoring, f.Folds, f.Candidates(), model.FormatParams(f.Fixed))
			}
			return w.Flush()
		},
	}
}
