package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the human review queue",
	Long:  "Lists proposed passages and annotations, records verdicts, and shows decision history.",
}

var reviewQueueCmd = &cobra.Command{
	Use:   "queue <kind>",
	Short: "List proposed objects of one kind (passage, tag, link, flag)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")

		items, err := review.NewService(st).Queue(ctx, model.ReviewKind(args[0]), limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "Queue is empty.")
			return nil
		}
		formatQueue(os.Stdout, items)
		return nil
	},
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <kind> <object-id>",
	Short: "Record a verdict on a proposed object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decision, _ := cmd.Flags().GetString("decision")
		notes, _ := cmd.Flags().GetString("notes")
		reviewer, _ := cmd.Flags().GetString("reviewer")

		record, err := review.NewService(st).Apply(ctx, review.DecisionInput{
			Kind:       model.ReviewKind(args[0]),
			ObjectID:   args[1],
			Decision:   model.ReviewDecision(decision),
			Notes:      notes,
			ReviewerID: reviewer,
		})
		if err != nil {
			return err
		}

		zap.L().Info("decision recorded",
			zap.String("decision_id", record.ID),
			zap.String("object_id", record.ObjectID),
			zap.String("previous_state", record.PreviousState),
			zap.String("new_state", record.NewState),
		)
		return nil
	},
}

var reviewHistoryCmd = &cobra.Command{
	Use:   "history <object-id>",
	Short: "Show the decision trail for an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decisions, err := review.NewService(st).Decisions(ctx, args[0])
		if err != nil {
			return err
		}
		if len(decisions) == 0 {
			fmt.Fprintln(os.Stderr, "No decisions recorded.")
			return nil
		}
		formatDecisions(os.Stdout, decisions)
		return nil
	},
}

func init() {
	reviewQueueCmd.Flags().Int("limit", review.DefaultQueueLimit, "max number of items to display")

	reviewDecideCmd.Flags().String("decision", "", "approve, reject, or needs_revision (required)")
	reviewDecideCmd.Flags().String("notes", "", "reviewer notes (required for reject and needs_revision)")
	reviewDecideCmd.Flags().String("reviewer", "cli", "reviewer recorded on the decision")
	_ = reviewDecideCmd.MarkFlagRequired("decision")

	reviewCmd.AddCommand(reviewQueueCmd)
	reviewCmd.AddCommand(reviewDecideCmd)
	reviewCmd.AddCommand(reviewHistoryCmd)
	rootCmd.AddCommand(reviewCmd)
}

func formatQueue(out io.Writer, items []review.QueueItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tID\tSUMMARY\tCREATED")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.Kind, item.ObjectID, item.Summary,
			item.CreatedAt.Local().Format(time.RFC3339))
	}
	_ = w.Flush()
}

func formatDecisions(out io.Writer, decisions []model.ReviewDecisionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tREVIEWER\tDECISION\tTRANSITION\tNOTES")
	for _, d := range decisions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s -> %s\t%s\n",
			d.CreatedAt.Local().Format(time.RFC3339), d.ReviewerID, d.Decision,
			d.PreviousState, d.NewState, d.Notes)
	}
	_ = w.Flush()
}
