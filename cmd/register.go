package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/three-lanterns/curator/internal/workflow"
)

var (
	registerRegion      string
	registerTraditions  []string
	registerTitle       string
	registerActor       string
	registerEnqueue     bool
	registerConcurrency int
)

var registerCmd = &cobra.Command{
	Use:   "register <path>...",
	Short: "Register digitized source files into the corpus",
	Long:  "Fingerprints each file, resolves duplicates, clusters witnesses, and optionally enqueues ingestion jobs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if registerTitle != "" && len(args) > 1 {
			return fmt.Errorf("--title only applies to a single path")
		}

		return registerPaths(ctx, env.Pipeline, args)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerRegion, "region", "", "origin region (required, controlled vocabulary)")
	registerCmd.Flags().StringSliceVar(&registerTraditions, "tradition", nil, "tradition labels (controlled vocabulary, repeatable)")
	registerCmd.Flags().StringVar(&registerTitle, "title", "", "canonical title override (single path only)")
	registerCmd.Flags().StringVar(&registerActor, "actor", "cli", "actor recorded in the audit trail")
	registerCmd.Flags().BoolVar(&registerEnqueue, "enqueue", false, "enqueue an ingestion job per registered source")
	registerCmd.Flags().IntVar(&registerConcurrency, "concurrency", 4, "max files registered in parallel")
	_ = registerCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(registerCmd)
}

// registerPaths registers files concurrently. Individual failures are logged
// and counted but do not abort the batch.
func registerPaths(ctx context.Context, pipeline *workflow.Pipeline, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(registerConcurrency)

	var registered, duplicates, failed atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("path", path))

			reg, err := pipeline.Register(gctx, workflow.RegisterInput{
				Path:       path,
				Title:      registerTitle,
				Region:     registerRegion,
				Traditions: registerTraditions,
				Actor:      registerActor,
			})
			if err != nil {
				failed.Add(1)
				log.Error("registration failed", zap.Error(err))
				return nil
			}

			if reg.AlreadyExisted {
				duplicates.Add(1)
				log.Info("already registered",
					zap.String("source_id", reg.Source.ID),
					zap.String("dedupe", string(reg.Dedupe)))
				return nil
			}
			registered.Add(1)
			log.Info("registered",
				zap.String("source_id", reg.Source.ID),
				zap.String("text_id", reg.Text.ID),
				zap.String("dedupe", string(reg.Dedupe)))

			if registerEnqueue {
				job, err := pipeline.EnqueueIngestion(gctx, reg.Source.ID, "", registerActor)
				if err != nil {
					log.Warn("enqueue failed", zap.Error(err))
					return nil
				}
				log.Info("ingestion enqueued", zap.String("job_id", job.ID))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "registered %d, duplicates %d, failed %d\n",
		registered.Load(), duplicates.Load(), failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d registrations failed", failed.Load(), len(paths))
	}
	return nil
}
