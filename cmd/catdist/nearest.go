package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/23skdu/catdist/internal/report"
	"github.com/spf13/cobra"
)

func newNearestCmd(a *app) *cobra.Command {
	var (
		path string
		k    int
	)
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "List the nearest neighbours of every sample",
		Long: `Rank every sample's closest other samples from a distance matrix written
by compute --out. Ties break on the lower sample index.

Examples:
  catdist nearest --matrix dist.parquet
  catdist nearest --matrix dist.parquet --k 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			neighbors, err := report.New(path).Nearest(cmd.Context(), k)
			if err != nil {
				return err
			}
			a.logger.Debug().Int("rows", len(neighbors)).Str("path", path).Msg("Nearest neighbours ranked")

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SAMPLE\tRANK\tNEIGHBOR\tDISTANCE")
			for _, nb := range neighbors {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", nb.Sample, nb.Rank, nb.Neighbor, nb.Distance)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "matrix", "", "distance matrix Parquet path")
	cmd.Flags().IntVar(&k, "k", 5, "neighbours per sample")
	_ = cmd.MarkFlagRequired("matrix")
	return cmd
}
