package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testText(id string) *model.Text {
	now := time.Now().UTC()
	return &model.Text{
		ID:             id,
		CanonicalTitle: "Rite of the Lantern Procession",
		Region:         "east_asia",
		TraditionTags:  []string{"festival", "procession"},
		CreatedBy:      "tester",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testSource(id, textID, path string) *model.SourceMaterial {
	now := time.Now().UTC()
	return &model.SourceMaterial{
		ID:               id,
		TextID:           textID,
		Path:             path,
		RawSHA256:        "raw-" + id,
		NormalizedSHA256: "norm-" + id,
		CreatedBy:        "tester",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func testPassage(id, sourceID string) *model.Passage {
	now := time.Now().UTC()
	return &model.Passage{
		ID:                id,
		TextID:            "txt_1",
		SourceID:          sourceID,
		SpanLocator:       "p.12",
		Original:          "original excerpt text",
		Normalized:        "normalized excerpt text",
		TranslationStatus: model.TranslationTranslated,
		RelevanceState:    model.RelevanceAccepted,
		ReviewerState:     model.ReviewerProposed,
		PublishState:      model.PublishBlocked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func testIngestionJob(id, sourceID string, createdAt time.Time) *model.IngestionJob {
	return &model.IngestionJob{
		ID:             id,
		SourceID:       sourceID,
		IdempotencyKey: "ingest:" + sourceID,
		Status:         model.JobPending,
		MaxAttempts:    3,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestSQLiteTextRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	text := testText("txt_1")
	require.NoError(t, s.CreateText(ctx, text))

	got, err := s.GetText(ctx, "txt_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Rite of the Lantern Procession", got.CanonicalTitle)
	assert.Equal(t, []string{"festival", "procession"}, got.TraditionTags)

	got.SourceCount = 2
	got.Region = "southeast_asia"
	require.NoError(t, s.UpdateText(ctx, got))

	updated, err := s.GetText(ctx, "txt_1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 2, updated.SourceCount)
	assert.Equal(t, "southeast_asia", updated.Region)
}

func TestSQLiteGetTextMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetText(context.Background(), "txt_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteUpdateTextMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.UpdateText(context.Background(), testText("txt_missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteSearchTexts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateText(ctx, testText("txt_1")))
	other := testText("txt_2")
	other.CanonicalTitle = "Harvest Offering Manual"
	require.NoError(t, s.CreateText(ctx, other))

	results, err := s.SearchTexts(ctx, "Lantern", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "txt_1", results[0].ID)
}

func TestSQLiteSourceByPath(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateText(ctx, testText("txt_1")))
	require.NoError(t, s.CreateSource(ctx, testSource("src_1", "txt_1", "/corpus/a.txt")))

	got, err := s.SourceByPath(ctx, "/corpus/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "src_1", got.ID)

	missing, err := s.SourceByPath(ctx, "/corpus/missing.txt")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteSourceHashLookups(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateText(ctx, testText("txt_1")))
	a := testSource("src_1", "txt_1", "/corpus/a.txt")
	b := testSource("src_2", "txt_1", "/corpus/b.txt")
	b.RawSHA256 = a.RawSHA256
	require.NoError(t, s.CreateSource(ctx, a))
	require.NoError(t, s.CreateSource(ctx, b))

	byRaw, err := s.SourcesByRawHash(ctx, a.RawSHA256)
	require.NoError(t, err)
	assert.Len(t, byRaw, 2)

	byNorm, err := s.SourcesByNormalizedHash(ctx, "norm-src_2")
	require.NoError(t, err)
	require.Len(t, byNorm, 1)
	assert.Equal(t, "src_2", byNorm[0].ID)

	byText, err := s.SourcesByTextID(ctx, "txt_1")
	require.NoError(t, err)
	assert.Len(t, byText, 2)
}

func TestSQLitePassageRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := testPassage("psg_1", "src_1")
	p.QualityNotes = map[string]any{"length": "ok"}
	require.NoError(t, s.CreatePassage(ctx, p))

	got, err := s.GetPassage(ctx, "psg_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "normalized excerpt text", got.Normalized)
	assert.Equal(t, map[string]any{"length": "ok"}, got.QualityNotes)
	assert.Nil(t, got.LastReprocessAt)

	reprocessedAt := time.Now().UTC().Truncate(time.Second)
	got.NeedsReprocess = true
	got.ReprocessCount = 1
	got.LastReprocessAt = &reprocessedAt
	got.TranslationStatus = model.TranslationNeedsReprocess
	require.NoError(t, s.UpdatePassage(ctx, got))

	updated, err := s.GetPassage(ctx, "psg_1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.NeedsReprocess)
	assert.Equal(t, 1, updated.ReprocessCount)
	require.NotNil(t, updated.LastReprocessAt)
	assert.WithinDuration(t, reprocessedAt, *updated.LastReprocessAt, time.Second)
	assert.Equal(t, model.TranslationNeedsReprocess, updated.TranslationStatus)
}

func TestSQLiteListPassagesFilters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testPassage("psg_1", "src_1")
	b := testPassage("psg_2", "src_2")
	b.RelevanceState = model.RelevanceFiltered
	c := testPassage("psg_3", "src_1")
	c.NeedsReprocess = true
	for _, p := range []*model.Passage{a, b, c} {
		require.NoError(t, s.CreatePassage(ctx, p))
	}

	bySource, err := s.ListPassages(ctx, PassageFilter{SourceID: "src_1"})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	needs := true
	byReprocess, err := s.ListPassages(ctx, PassageFilter{NeedsReprocess: &needs})
	require.NoError(t, err)
	require.Len(t, byReprocess, 1)
	assert.Equal(t, "psg_3", byReprocess[0].ID)

	peers, err := s.ListPeerPassages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, peers, 2)
	for _, p := range peers {
		assert.NotEqual(t, model.RelevanceFiltered, p.RelevanceState)
	}
}

func TestSQLitePassagesBySourceIDs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePassage(ctx, testPassage("psg_1", "src_1")))
	require.NoError(t, s.CreatePassage(ctx, testPassage("psg_2", "src_2")))

	got, err := s.PassagesBySourceIDs(ctx, []string{"src_2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "psg_2", got[0].ID)

	empty, err := s.PassagesBySourceIDs(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestSQLiteClaimNextIngestionJob(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.CreateIngestionJob(ctx, testIngestionJob("job_2", "src_2", base.Add(time.Second))))
	require.NoError(t, s.CreateIngestionJob(ctx, testIngestionJob("job_1", "src_1", base)))

	claimed, err := s.ClaimNextIngestionJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "job_1", claimed.ID)
	assert.Equal(t, model.JobRunning, claimed.Status)
	assert.Equal(t, 1, claimed.AttemptCount)

	second, err := s.ClaimNextIngestionJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "job_2", second.ID)

	empty, err := s.ClaimNextIngestionJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestSQLiteIngestionJobByKey(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	job := testIngestionJob("job_1", "src_1", time.Now().UTC())
	require.NoError(t, s.CreateIngestionJob(ctx, job))

	got, err := s.IngestionJobByKey(ctx, "ingest:src_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job_1", got.ID)

	// Same key again violates the unique constraint.
	dup := testIngestionJob("job_dup", "src_1", time.Now().UTC())
	require.Error(t, s.CreateIngestionJob(ctx, dup))
}

func TestSQLiteActiveReprocessJobForPassage(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	done := &model.ReprocessJob{
		ID:             "rep_1",
		PassageID:      "psg_1",
		IdempotencyKey: "root:psg_1",
		Status:         model.JobCompleted,
		TriggerMode:    model.TriggerAutoThreshold,
		MaxAttempts:    3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateReprocessJob(ctx, done))

	active, err := s.ActiveReprocessJobForPassage(ctx, "psg_1")
	require.NoError(t, err)
	assert.Nil(t, active)

	pending := &model.ReprocessJob{
		ID:             "rep_2",
		PassageID:      "psg_1",
		IdempotencyKey: "root:psg_1:2",
		Status:         model.JobPending,
		TriggerMode:    model.TriggerManual,
		MaxAttempts:    3,
		CreatedAt:      now.Add(time.Second),
		UpdatedAt:      now.Add(time.Second),
	}
	require.NoError(t, s.CreateReprocessJob(ctx, pending))

	active, err = s.ActiveReprocessJobForPassage(ctx, "psg_1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "rep_2", active.ID)
}

func TestSQLiteJobAttempts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, status := range []model.JobStatus{model.JobFailed, model.JobCompleted} {
		require.NoError(t, s.CreateJobAttempt(ctx, &model.JobAttempt{
			ID:        model.NewID("att"),
			JobID:     "job_1",
			AttemptNo: i + 1,
			Status:    status,
			CreatedAt: now,
		}))
	}

	attempts, err := s.ListJobAttempts(ctx, "job_1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].AttemptNo)
	assert.Equal(t, model.JobFailed, attempts[0].Status)
	assert.Equal(t, model.JobCompleted, attempts[1].Status)
}

func TestSQLiteBundleTraceExists(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.WriteProposalTrace(ctx, &model.ProposalTrace{
		ID:            "trc_1",
		ObjectType:    "passage",
		ObjectID:      "psg_1",
		ProposalType:  "bundle",
		FailureReason: "llm timeout",
		CreatedAt:     now,
	}))

	exists, err := s.SuccessfulBundleTraceExists(ctx, "psg_1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.WriteProposalTrace(ctx, &model.ProposalTrace{
		ID:           "trc_2",
		ObjectType:   "passage",
		ObjectID:     "psg_1",
		ProposalType: "bundle",
		CreatedAt:    now.Add(time.Second),
	}))

	exists, err = s.SuccessfulBundleTraceExists(ctx, "psg_1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteConsolidatedRebuild(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	group := &model.WitnessGroup{
		ID:          "grp_1",
		Status:      model.GroupActive,
		MatchMethod: model.MatchExactHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateWitnessGroup(ctx, group))

	cp := &model.ConsolidatedPassage{
		ID:          "con_1",
		GroupID:     "grp_1",
		MergedText:  "merged",
		PassageHash: "hash",
		CreatedAt:   now,
	}
	require.NoError(t, s.CreateConsolidatedPassage(ctx, cp))
	require.NoError(t, s.CreateConsolidatedPassageSource(ctx, &model.ConsolidatedPassageSource{
		ConsolidatedID: "con_1",
		PassageID:      "psg_1",
		SourceID:       "src_1",
		CreatedAt:      now,
	}))

	require.NoError(t, s.DeleteConsolidatedPassages(ctx, "grp_1"))

	remaining, err := s.ListConsolidatedPassages(ctx, "grp_1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSQLiteFlagByPassageAndType(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	flag := &model.FlagRecord{
		ID:            "flg_1",
		PassageID:     "psg_1",
		FlagType:      "uncertain_translation",
		Severity:      "high",
		ReviewerState: model.ReviewerProposed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateFlag(ctx, flag))

	got, err := s.FlagByPassageAndType(ctx, "psg_1", "uncertain_translation")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "flg_1", got.ID)

	missing, err := s.FlagByPassageAndType(ctx, "psg_1", "offensive_content")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteAuditEvents(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.WriteAuditEvent(ctx, &model.AuditEvent{
		ID:            "aud_1",
		Actor:         "worker",
		Action:        "job_claimed",
		ObjectType:    "ingestion_job",
		ObjectID:      "job_1",
		CorrelationID: "job_1",
		Metadata:      map[string]any{"attempt": "1"},
		CreatedAt:     now,
	}))
	require.NoError(t, s.WriteAuditEvent(ctx, &model.AuditEvent{
		ID:         "aud_2",
		Actor:      "worker",
		Action:     "job_completed",
		ObjectType: "ingestion_job",
		ObjectID:   "job_1",
		CreatedAt:  now.Add(time.Second),
	}))

	events, err := s.ListAuditEvents(ctx, AuditFilter{ObjectID: "job_1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "job_claimed", events[0].Action)
	assert.Equal(t, map[string]any{"attempt": "1"}, events[0].Metadata)

	byAction, err := s.ListAuditEvents(ctx, AuditFilter{Action: "job_completed"})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "aud_2", byAction[0].ID)
}

func TestSQLiteArtifactUnique(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.CreateArtifact(ctx, &model.Artifact{
		ID:           "art_1",
		SourceID:     "src_1",
		ArtifactType: "raw_text",
		Text:         "full parsed text",
		CreatedAt:    now,
	}))

	got, err := s.GetArtifact(ctx, "src_1", "raw_text")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "full parsed text", got.Text)

	dup := &model.Artifact{
		ID:           "art_2",
		SourceID:     "src_1",
		ArtifactType: "raw_text",
		Text:         "other",
		CreatedAt:    now,
	}
	require.Error(t, s.CreateArtifact(ctx, dup))
}

func TestSQLiteStats(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateText(ctx, testText("txt_1")))
	require.NoError(t, s.CreateSource(ctx, testSource("src_1", "txt_1", "/corpus/a.txt")))
	require.NoError(t, s.CreatePassage(ctx, testPassage("psg_1", "src_1")))
	require.NoError(t, s.CreateIngestionJob(ctx, testIngestionJob("job_1", "src_1", time.Now().UTC())))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Texts)
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, 1, stats.Passages)
	assert.Equal(t, 0, stats.WitnessGroups)
	assert.Equal(t, 1, stats.IngestionByStatus[model.JobPending])
	assert.Equal(t, 1, stats.TranslationStates[model.TranslationTranslated])
	assert.Equal(t, 1, stats.RelevanceStates[model.RelevanceAccepted])
}
