package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	audiosearch "github.com/kailas-cloud/audiosearch/pkg/sdk"
)

var (
	searchTopK        int
	searchLimit       int
	searchRanking     string
	searchExcludeSelf bool
)

var searchCmd = &cobra.Command{
	Use:   "search <uri>...",
	Short: "Find indexed recordings that sound like each query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptions()
		if err != nil {
			return err
		}

		queries := make([]audiosearch.Document, 0, len(args))
		for _, a := range args {
			d := audiosearch.Document{URI: a}
			if !strings.Contains(a, "://") {
				d.ID = fileID(a)
			}
			queries = append(queries, d)
		}

		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		results, err := client.Search(ctx, queries, opts...)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
			printResult(cmd.OutOrStdout(), r)
		}
		if failed > 0 {
			return fmt.Errorf("%d queries failed", failed)
		}
		return nil
	},
}

func searchOptions() ([]audiosearch.CallOption, error) {
	var opts []audiosearch.CallOption
	if searchTopK > 0 {
		opts = append(opts, audiosearch.TopK(searchTopK))
	}
	if searchLimit > 0 {
		opts = append(opts, audiosearch.Limit(searchLimit))
	}
	switch p := audiosearch.RankPolicy(searchRanking); p {
	case "":
	case audiosearch.RankMin, audiosearch.RankMax:
		opts = append(opts, audiosearch.Ranking(p))
	default:
		return nil, fmt.Errorf("unknown ranking %q (want min or max)", searchRanking)
	}
	if searchExcludeSelf {
		opts = append(opts, audiosearch.ExcludeSelf())
	}
	return opts, nil
}

func printResult(w io.Writer, r audiosearch.SearchResult) {
	if r.Err != nil {
		fmt.Fprintf(w, "%s: %v\n", r.ID, r.Err)
		return
	}
	fmt.Fprintf(w, "%s:\n", r.ID)
	if len(r.Matches) == 0 {
		fmt.Fprintln(w, "  no matches")
		return
	}
	for i, m := range r.Matches {
		fmt.Fprintf(w, "  %2d. %-24s %s  %.0f-%.0f ms\n", i+1, m.ID, formatScores(m.Scores), m.BegInMs, m.EndInMs)
	}
}

func formatScores(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for k := range scores {
		names = append(names, k)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, scores[k]))
	}
	return strings.Join(parts, " ")
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchTopK, "top-k", "k", 0, "chunk neighbours fetched per query window")
	f.IntVar(&searchLimit, "limit", 0, "recordings returned per query")
	f.StringVar(&searchRanking, "ranking", "", "chunk score aggregation: min or max")
	f.BoolVar(&searchExcludeSelf, "exclude-self", false, "drop chunks of the query recording")
	rootCmd.AddCommand(searchCmd)
}
