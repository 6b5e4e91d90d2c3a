package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus and queue statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatStats(out io.Writer, stats *store.PipelineStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Texts\t%d\n", stats.Texts)
	_, _ = fmt.Fprintf(w, "Sources\t%d\n", stats.Sources)
	_, _ = fmt.Fprintf(w, "Passages\t%d\n", stats.Passages)
	_, _ = fmt.Fprintf(w, "Witness groups\t%d\n", stats.WitnessGroups)
	_ = w.Flush()

	fmt.Fprintln(out)
	formatStatusCounts(out, "INGESTION", stats.IngestionByStatus)
	formatStatusCounts(out, "REPROCESS", stats.ReprocessByStatus)

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range []model.TranslationStatus{model.TranslationTranslated, model.TranslationNeedsReprocess, model.TranslationUnresolved} {
		if n := stats.TranslationStates[s]; n > 0 {
			_, _ = fmt.Fprintf(w, "translation/%s\t%d\n", s, n)
		}
	}
	for _, s := range []model.RelevanceState{model.RelevanceAccepted, model.RelevanceBorderline, model.RelevanceFiltered} {
		if n := stats.RelevanceStates[s]; n > 0 {
			_, _ = fmt.Fprintf(w, "relevance/%s\t%d\n", s, n)
		}
	}
	_ = w.Flush()
}

func formatStatusCounts(out io.Writer, label string, counts map[model.JobStatus]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range []model.JobStatus{model.JobPending, model.JobRunning, model.JobCompleted, model.JobFailed, model.JobDeadLetter} {
		if n := counts[s]; n > 0 {
			_, _ = fmt.Fprintf(w, "%s/%s\t%d\n", label, s, n)
		}
	}
	_ = w.Flush()
}
