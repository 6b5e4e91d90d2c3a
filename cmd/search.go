package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search passages, tags, links, and flags",
	Long:  "Ranks matches by phrase and token overlap. At least one of query, kind, tag, region, or state is required.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		tag, _ := cmd.Flags().GetString("tag")
		region, _ := cmd.Flags().GetString("region")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		var query string
		if len(args) == 1 {
			query = args[0]
		}

		hits, err := search.NewService(st).Records(ctx, search.Params{
			Query:       query,
			Kind:        model.ReviewKind(kind),
			Tag:         tag,
			Region:      region,
			ReviewState: model.ReviewerState(state),
			Limit:       limit,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		}
		if len(hits) == 0 {
			fmt.Fprintln(os.Stderr, "No matches.")
			return nil
		}
		formatHits(os.Stdout, hits)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("kind", "", "restrict to one kind (passage, tag, link, flag)")
	searchCmd.Flags().String("tag", "", "controlled term; narrows passages and tags")
	searchCmd.Flags().String("region", "", "origin region of the owning text")
	searchCmd.Flags().String("state", "", "filter by reviewer state")
	searchCmd.Flags().Int("limit", search.DefaultLimit, "max number of hits")
	searchCmd.Flags().Bool("json", false, "emit hits as JSON")
	rootCmd.AddCommand(searchCmd)
}

func formatHits(out io.Writer, hits []search.Hit) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tKIND\tID\tSTATE\tSNIPPET")
	for _, h := range hits {
		_, _ = fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
			h.Score, h.Kind, h.ObjectID, h.ReviewState, h.Snippet)
	}
	_ = w.Flush()
}
