package workflow

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

func TestEnqueueIngestion_Idempotent(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()
	reg := h.register(t, "rite.txt", ritualText)

	first, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)
	second, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ingest:"+reg.Source.ID, first.IdempotencyKey)
	assert.Equal(t, model.JobPending, first.Status)
}

func TestEnqueueIngestion_UnknownSource(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})

	_, err := h.pipeline.EnqueueIngestion(context.Background(), "src_nope", "", "tester")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestRunIngestionJob_CompletesPipeline(t *testing.T) {
	h := newHarness(t, nil, nil, Options{AIEnabled: true})
	ctx := context.Background()
	reg := h.register(t, "morning_rite.txt", ritualText)

	job, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)

	done, err := h.store.GetIngestionJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, 1, done.AttemptCount)
	assert.Empty(t, done.LastError)

	passages, err := h.store.ListPassages(ctx, store.PassageFilter{SourceID: reg.Source.ID})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	passage := passages[0]
	assert.Equal(t, model.TranslationTranslated, passage.TranslationStatus)
	assert.False(t, passage.NeedsReprocess)
	assert.NotEqual(t, model.RelevanceFiltered, passage.RelevanceState)
	assert.GreaterOrEqual(t, passage.UsabilityScore, 0.6)

	// Parsed text is cached once per source.
	artifact, err := h.store.GetArtifact(ctx, reg.Source.ID, rawTextArtifact)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Contains(t, artifact.Text, "invocation offering dawn")

	// Heuristic proposals landed in the review queue.
	tags, err := h.store.ListTagsByState(ctx, model.ReviewerProposed, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, tags)

	// Group consolidation ran after completion.
	groups, err := h.store.ListWitnessGroups(ctx, model.GroupActive, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	consolidated, err := h.store.ListConsolidatedPassages(ctx, groups[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, consolidated)

	events, err := h.store.ListAuditEvents(ctx, store.AuditFilter{ObjectID: job.ID, Action: "job_completed"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRunIngestionJob_MissingFileDeadLetters(t *testing.T) {
	h := newHarness(t, nil, nil, Options{MaxAttempts: 2})
	ctx := context.Background()
	reg := h.register(t, "vanishing.txt", ritualText)
	require.NoError(t, os.Remove(reg.Source.Path))

	job, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)

	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.Error(t, runErr)
	after, err := h.store.GetIngestionJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, after.Status)
	assert.Equal(t, 1, after.AttemptCount)
	assert.Equal(t, model.ErrSourceMissing, after.ErrorCode)
	assert.Contains(t, after.LastError, "source file missing")

	claimed, runErr = worker.Step(ctx)
	require.True(t, claimed)
	require.Error(t, runErr)
	after, err = h.store.GetIngestionJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDeadLetter, after.Status)
	assert.Equal(t, 2, after.AttemptCount)

	attempts, err := h.store.ListJobAttempts(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, attempt := range attempts {
		assert.Equal(t, model.JobFailed, attempt.Status)
	}

	// Dead-lettered jobs leave the queue.
	claimed, _ = worker.Step(ctx)
	assert.False(t, claimed)
}

func TestRunIngestionJob_AutoEnqueuesReprocess(t *testing.T) {
	scripted := &scriptedTranslator{ratios: map[model.SourceVariant]float64{
		model.VariantOriginal: 0.9,
	}}
	h := newHarness(t, scripted, nil, Options{AIEnabled: true})
	ctx := context.Background()
	reg := h.register(t, "garbled_rite.txt", ritualText)

	job, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)

	done, err := h.store.GetIngestionJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.Status)

	pending, err := h.store.ListReprocessJobs(ctx, store.JobFilter{Status: model.JobPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.TriggerAutoThreshold, pending[0].TriggerMode)
	assert.True(t, strings.HasPrefix(pending[0].TriggerReason, "translation_incomplete"))

	passages, err := h.store.ListPassages(ctx, store.PassageFilter{SourceID: reg.Source.ID})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, passages[0].ID, pending[0].PassageID)
	assert.True(t, passages[0].NeedsReprocess)
}
