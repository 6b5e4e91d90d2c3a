package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/pkg/freeref"
)

func TestEnqueueReprocess_UnknownPassage(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})

	_, err := h.pipeline.EnqueueReprocess(context.Background(), "psg_nope", model.TriggerManual, "manual_review", "", "tester")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestEnqueueReprocess_ActiveJobReturned(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()
	passage := h.seedPassage(t, "zharu velkat minor dast", true)

	first, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerManual, "manual_review", "reviewer request", "tester")
	require.NoError(t, err)
	second, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerManual, "manual_review", "reviewer request", "tester")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.JobPending, first.Status)
	assert.Equal(t, "manual_review: reviewer request", first.TriggerReason)
}

func TestRunReprocessJob_AcceptsExternalReference(t *testing.T) {
	scripted := &scriptedTranslator{ratios: map[model.SourceVariant]float64{
		model.VariantOriginal:          0.85,
		model.VariantExternalReference: 0.05,
	}}
	refs := fakeSearcher{candidates: []freeref.Candidate{{
		Provider: "wikisource",
		Title:    "Hymn to the Dawn",
		Locator:  "https://en.wikisource.org/wiki/Hymn_to_the_Dawn",
		Snippet:  "an older edition of the same hymn",
		Score:    0.8,
	}}}
	h := newHarness(t, scripted, refs, Options{})
	ctx := context.Background()
	passage := h.seedPassage(t, "zharu velkat minor dast", true)

	job, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerManual, "manual_review", "", "tester")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)

	done, err := h.store.GetReprocessJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.False(t, done.UsedPDFCrossref)
	assert.True(t, done.UsedExternalReference)

	revisions, err := h.store.ListTranslationRevisions(ctx, passage.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, model.VariantOriginal, revisions[0].SourceVariant)
	assert.Equal(t, "rejected", revisions[0].QualityDecision)
	assert.Equal(t, model.VariantExternalReference, revisions[1].SourceVariant)
	assert.Equal(t, "accepted", revisions[1].QualityDecision)
	assert.Equal(t, 1, revisions[0].AttemptNo)
	assert.Equal(t, 2, revisions[1].AttemptNo)

	updated, err := h.store.GetPassage(ctx, passage.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TranslationTranslated, updated.TranslationStatus)
	assert.False(t, updated.NeedsReprocess)
	assert.Equal(t, 1, updated.ReprocessCount)
	assert.Equal(t, "scripted", updated.TranslationSource)
	assert.Contains(t, updated.Normalized, "modernized:")
	require.NotNil(t, updated.LastReprocessAt)
	assert.WithinDuration(t, time.Now().UTC(), *updated.LastReprocessAt, time.Minute)
}

func TestRunReprocessJob_ExhaustsAndMarksUnresolved(t *testing.T) {
	scripted := &scriptedTranslator{ratios: map[model.SourceVariant]float64{
		model.VariantOriginal: 1.0,
	}}
	h := newHarness(t, scripted, nil, Options{MaxAttempts: 2})
	ctx := context.Background()
	passage := h.seedPassage(t, "zharu velkat minor dast", true)

	job, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerAutoThreshold, "translation_incomplete", "", "worker")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)

	// First cycle: below the bar, attempts remain, the job requeues.
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)
	after, err := h.store.GetReprocessJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, after.Status)
	assert.Equal(t, model.ErrTranslationBelowBar, after.ErrorCode)
	mid, err := h.store.GetPassage(ctx, passage.ID)
	require.NoError(t, err)
	assert.True(t, mid.NeedsReprocess)
	assert.Equal(t, model.TranslationNeedsReprocess, mid.TranslationStatus)
	assert.Equal(t, 1, mid.ReprocessCount)

	// Second cycle: attempts exhausted, dead-letter and unresolved.
	claimed, runErr = worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)
	after, err = h.store.GetReprocessJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDeadLetter, after.Status)
	assert.Equal(t, model.ErrUnresolved, after.ErrorCode)
	assert.Equal(t, "no source variant met the translation quality gate", after.LastError)

	final, err := h.store.GetPassage(ctx, passage.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TranslationUnresolved, final.TranslationStatus)
	assert.False(t, final.NeedsReprocess)
	assert.Equal(t, 2, final.ReprocessCount)

	flag, err := h.store.FlagByPassageAndType(ctx, passage.ID, uncertainTranslationFlag)
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.Equal(t, "high", flag.Severity)
	assert.Equal(t, model.ReviewerProposed, flag.ReviewerState)

	// The advanced reprocess count refreshes the idempotency key, so a
	// later manual enqueue starts a fresh job.
	fresh, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerManual, "manual_review", "", "tester")
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, fresh.ID)
	assert.Equal(t, model.JobPending, fresh.Status)
}

func TestRunReprocessJob_PassageGoneFails(t *testing.T) {
	h := newHarness(t, nil, nil, Options{MaxAttempts: 1})
	ctx := context.Background()

	now := time.Now().UTC()
	job := &model.ReprocessJob{
		ID:             model.NewID("rep"),
		PassageID:      "psg_gone",
		IdempotencyKey: "reproc:psg_gone:0",
		Status:         model.JobPending,
		TriggerMode:    model.TriggerManual,
		TriggerReason:  "manual_review",
		MaxAttempts:    1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, h.store.CreateReprocessJob(ctx, job))

	worker := NewWorker(h.pipeline, 0)
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.Error(t, runErr)

	after, err := h.store.GetReprocessJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDeadLetter, after.Status)
	assert.Equal(t, model.ErrPassageNotFound, after.ErrorCode)
}
