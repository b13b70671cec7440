package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handsomefox/moviescope/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search TMDB once and count the top result",
	Long: `Search TMDB for a movie title and print the results. The top result is
counted in the configured counter store, just like a search in the web view.

Without a query the most popular movies are listed.

Examples:
  moviescope search batman
  moviescope search "the dark knight"
  moviescope search`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	ctx := cmd.Context()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	ctrl := d.app.Search()
	ctrl.Submit(query)
	ctrl.Wait()

	st := ctrl.State()
	out := cmd.OutOrStdout()
	switch st.Status {
	case search.StatusError:
		return errors.New(st.Message)
	case search.StatusEmpty:
		fmt.Fprintln(out, st.Message)
		return nil
	}

	for i, m := range st.Movies {
		year := m.Year()
		if year == "" {
			year = "N/A"
		}
		fmt.Fprintf(out, "%2d. %s (%s)  %.1f\n", i+1, m.Title, year, m.VoteAverage)
	}
	return nil
}
