package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
)

func TestWorkerStep_EmptyQueues(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})

	claimed, err := NewWorker(h.pipeline, 0).Step(context.Background())
	assert.False(t, claimed)
	assert.NoError(t, err)
}

func TestWorkerStep_PrefersReprocessJobs(t *testing.T) {
	scripted := &scriptedTranslator{ratios: map[model.SourceVariant]float64{}}
	h := newHarness(t, scripted, nil, Options{AIEnabled: true})
	ctx := context.Background()

	reg := h.register(t, "rite.txt", ritualText)
	ingestion, err := h.pipeline.EnqueueIngestion(ctx, reg.Source.ID, "", "tester")
	require.NoError(t, err)

	passage := h.seedPassage(t, "zharu velkat minor dast", true)
	reprocess, err := h.pipeline.EnqueueReprocess(ctx, passage.ID, model.TriggerManual, "manual_review", "", "tester")
	require.NoError(t, err)

	worker := NewWorker(h.pipeline, 0)
	claimed, runErr := worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)

	afterReprocess, err := h.store.GetReprocessJob(ctx, reprocess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, afterReprocess.Status)
	afterIngestion, err := h.store.GetIngestionJob(ctx, ingestion.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, afterIngestion.Status)

	claimed, runErr = worker.Step(ctx)
	require.True(t, claimed)
	require.NoError(t, runErr)
	afterIngestion, err = h.store.GetIngestionJob(ctx, ingestion.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, afterIngestion.Status)
}

func TestWorkerRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWorker(h.pipeline, 10*time.Millisecond).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettleFailedJob(t *testing.T) {
	assert.Equal(t, model.JobPending, settleFailedJob(1, 3))
	assert.Equal(t, model.JobPending, settleFailedJob(2, 3))
	assert.Equal(t, model.JobDeadLetter, settleFailedJob(3, 3))
	assert.Equal(t, model.JobDeadLetter, settleFailedJob(4, 3))
}

func TestClassifyErrors(t *testing.T) {
	assert.Equal(t, model.ErrSourceMissing, classifyIngestionError(eris.New("workflow: source file missing: /x.txt")))
	assert.Equal(t, model.ErrUnsupportedExtension, classifyIngestionError(eris.New("parser: unsupported extension .exe")))
	assert.Equal(t, model.ErrParseNoText, classifyIngestionError(eris.New("parser: no extractable text")))
	assert.Equal(t, model.ErrJobProcessing, classifyIngestionError(assert.AnError))

	assert.Equal(t, model.ErrPassageNotFound, classifyReprocessError(eris.New("workflow: passage not found: psg_x")))
	assert.Equal(t, model.ErrTranslationFailure, classifyReprocessError(eris.New("workflow: translate variant original: boom")))
	assert.Equal(t, model.ErrReprocessFailure, classifyReprocessError(assert.AnError))
}
