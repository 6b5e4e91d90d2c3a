package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
)

var (
	reprocessReason string
	reprocessNote   string
	reprocessActor  string
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <passage-id>",
	Short: "Manually enqueue a reprocess job for a passage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Pipeline.EnqueueReprocess(ctx, args[0],
			model.TriggerManual, reprocessReason, reprocessNote, reprocessActor)
		if err != nil {
			return err
		}

		zap.L().Info("reprocess enqueued",
			zap.String("job_id", job.ID),
			zap.String("passage_id", job.PassageID),
			zap.String("status", string(job.Status)),
			zap.String("trigger_reason", job.TriggerReason),
		)
		return nil
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessReason, "reason", "manual_review", "reason code recorded on the job")
	reprocessCmd.Flags().StringVar(&reprocessNote, "note", "", "free-form note appended to the trigger reason")
	reprocessCmd.Flags().StringVar(&reprocessActor, "actor", "cli", "actor recorded in the audit trail")
	rootCmd.AddCommand(reprocessCmd)
}
