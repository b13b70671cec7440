package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print the most searched movies",
	Args:  cobra.NoArgs,
	RunE:  runTrending,
}

func runTrending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	top := d.trending.Top3(ctx)
	out := cmd.OutOrStdout()
	if len(top) == 0 {
		fmt.Fprintln(out, "No searches recorded yet.")
		return nil
	}
	for i, c := range top {
		fmt.Fprintf(out, "%d. %s  (%d searches)\n", i+1, c.Title, c.Count)
	}
	return nil
}
