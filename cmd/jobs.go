package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the ingestion and reprocess job queues",
}

var jobsIngestionCmd = &cobra.Command{
	Use:   "ingestion",
	Short: "List ingestion jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListIngestionJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs ingestion")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No ingestion jobs found.")
			return nil
		}
		formatIngestionJobs(os.Stdout, jobs)
		return nil
	},
}

var jobsReprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "List reprocess jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListReprocessJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs reprocess")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No reprocess jobs found.")
			return nil
		}
		formatReprocessJobs(os.Stdout, jobs)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{jobsIngestionCmd, jobsReprocessCmd} {
		c.Flags().String("status", "", "filter by job status (pending, running, completed, failed, dead_letter)")
		c.Flags().Int("limit", 50, "max number of jobs to display")
	}
	jobsCmd.AddCommand(jobsIngestionCmd)
	jobsCmd.AddCommand(jobsReprocessCmd)
	rootCmd.AddCommand(jobsCmd)
}

func formatIngestionJobs(out io.Writer, jobs []model.IngestionJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tATTEMPTS\tERROR_CODE\tUPDATED")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.SourceID, j.Status, j.AttemptCount, j.MaxAttempts,
			j.ErrorCode, j.UpdatedAt.Local().Format(time.RFC3339))
	}
	_ = w.Flush()
}

func formatReprocessJobs(out io.Writer, jobs []model.ReprocessJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPASSAGE\tSTATUS\tTRIGGER\tATTEMPTS\tERROR_CODE\tUPDATED")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.PassageID, j.Status, j.TriggerMode, j.AttemptCount, j.MaxAttempts,
			j.ErrorCode, j.UpdatedAt.Local().Format(time.RFC3339))
	}
	_ = w.Flush()
}
