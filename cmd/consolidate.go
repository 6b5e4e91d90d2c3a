package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <group-id>",
	Short: "Rebuild a witness group's consolidated passages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Witness.Consolidate(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("group consolidated",
			zap.String("group_id", args[0]),
			zap.Int("consolidated", result.Consolidated),
			zap.Int("sources", result.Sources),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
