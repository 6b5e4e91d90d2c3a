package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/review"
	"github.com/three-lanterns/curator/internal/search"
	"github.com/three-lanterns/curator/internal/store"
)

func TestFormatIngestionJobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	jobs := []model.IngestionJob{
		{
			ID:           "ing_aaa",
			SourceID:     "src_111",
			Status:       model.JobCompleted,
			AttemptCount: 1,
			MaxAttempts:  3,
			CreatedAt:    now,
			UpdatedAt:    now.Add(time.Minute),
		},
		{
			ID:           "ing_bbb",
			SourceID:     "src_222",
			Status:       model.JobDeadLetter,
			AttemptCount: 3,
			MaxAttempts:  3,
			ErrorCode:    model.ErrSourceMissing,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	var buf bytes.Buffer
	formatIngestionJobs(&buf, jobs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "ing_aaa")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "1/3")
	assert.Contains(t, output, "ing_bbb")
	assert.Contains(t, output, "dead_letter")
	assert.Contains(t, output, "source_missing")
}

func TestFormatReprocessJobs(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	jobs := []model.ReprocessJob{
		{
			ID:           "rpj_ccc",
			PassageID:    "psg_333",
			Status:       model.JobPending,
			TriggerMode:  model.TriggerAutoThreshold,
			AttemptCount: 0,
			MaxAttempts:  3,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	var buf bytes.Buffer
	formatReprocessJobs(&buf, jobs)

	output := buf.String()
	assert.Contains(t, output, "PASSAGE")
	assert.Contains(t, output, "rpj_ccc")
	assert.Contains(t, output, "psg_333")
	assert.Contains(t, output, "auto_threshold")
	assert.Contains(t, output, "0/3")
}

func TestFormatQueue(t *testing.T) {
	items := []review.QueueItem{
		{
			Kind:      model.ReviewTag,
			ObjectID:  "tag_444",
			Summary:   "exchange_offering/liquid_libation (0.82)",
			CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatQueue(&buf, items)

	output := buf.String()
	assert.Contains(t, output, "KIND")
	assert.Contains(t, output, "tag_444")
	assert.Contains(t, output, "exchange_offering/liquid_libation (0.82)")
}

func TestFormatDecisions(t *testing.T) {
	decisions := []model.ReviewDecisionRecord{
		{
			ID:            "dec_555",
			ObjectKind:    model.ReviewPassage,
			ObjectID:      "psg_666",
			ReviewerID:    "scholar-1",
			Decision:      model.DecisionNeedsRevision,
			Notes:         "translation drops the second invocation",
			PreviousState: "proposed",
			NewState:      "needs_revision",
			CreatedAt:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatDecisions(&buf, decisions)

	output := buf.String()
	assert.Contains(t, output, "scholar-1")
	assert.Contains(t, output, "needs_revision")
	assert.Contains(t, output, "proposed -> needs_revision")
	assert.Contains(t, output, "translation drops the second invocation")
}

func TestFormatHits(t *testing.T) {
	hits := []search.Hit{
		{Kind: model.ReviewPassage, ObjectID: "psg_777", Score: 1.5, Snippet: "a libation at the altar", ReviewState: model.ReviewerProposed},
		{Kind: model.ReviewTag, ObjectID: "tag_888", Score: 1.0, Snippet: "exchange_offering/liquid_libation", ReviewState: model.ReviewerApproved},
	}

	var buf bytes.Buffer
	formatHits(&buf, hits)

	output := buf.String()
	assert.Contains(t, output, "1.50")
	assert.Contains(t, output, "psg_777")
	assert.Contains(t, output, "a libation at the altar")
	assert.Contains(t, output, "tag_888")
	assert.Contains(t, output, "approved")
}

func TestFormatStats(t *testing.T) {
	stats := &store.PipelineStats{
		Texts:         4,
		Sources:       6,
		Passages:      42,
		WitnessGroups: 3,
		IngestionByStatus: map[model.JobStatus]int{
			model.JobCompleted:  5,
			model.JobDeadLetter: 1,
		},
		ReprocessByStatus: map[model.JobStatus]int{
			model.JobPending: 2,
		},
		TranslationStates: map[model.TranslationStatus]int{
			model.TranslationTranslated: 40,
			model.TranslationUnresolved: 2,
		},
		RelevanceStates: map[model.RelevanceState]int{
			model.RelevanceAccepted: 38,
			model.RelevanceFiltered: 4,
		},
	}

	var buf bytes.Buffer
	formatStats(&buf, stats)

	output := buf.String()
	assert.Contains(t, output, "Texts")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "INGESTION/completed")
	assert.Contains(t, output, "INGESTION/dead_letter")
	assert.Contains(t, output, "REPROCESS/pending")
	assert.Contains(t, output, "translation/translated")
	assert.Contains(t, output, "relevance/filtered")
	assert.NotContains(t, output, "REPROCESS/running")
}
