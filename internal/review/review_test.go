package review

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st), st
}

func seedPassage(t *testing.T, st store.Store) *model.Passage {
	t.Helper()
	now := time.Now().UTC()
	passage := &model.Passage{
		ID:                 model.NewID("psg"),
		TextID:             model.NewID("txt"),
		SourceID:           model.NewID("src"),
		SpanLocator:        "segment_1",
		Original:           "the priest poured a libation at the altar before dawn",
		Normalized:         "the priest poured a libation at the altar before dawn",
		NormalizedLanguage: model.CanonicalLanguage,
		DetectedLangCode:   "eng",
		DetectedLangLabel:  "English",
		LangConfidence:     0.9,
		TranslationStatus:  model.TranslationTranslated,
		TranslationSource:  "mock_translator",
		UsabilityScore:     0.8,
		RelevanceScore:     0.7,
		RelevanceState:     model.RelevanceAccepted,
		QualityVersion:     "q1",
		ReviewerState:      model.ReviewerProposed,
		PublishState:       model.PublishBlocked,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, st.CreatePassage(context.Background(), passage))
	return passage
}

func seedTag(t *testing.T, st store.Store, evidenceID string) *model.RitualPatternTag {
	t.Helper()
	now := time.Now().UTC()
	tag := &model.RitualPatternTag{
		ID:            model.NewID("tag"),
		Dimension:     "exchange_offering",
		Term:          "liquid_libation",
		Confidence:    0.68,
		EvidenceIDs:   []string{evidenceID},
		ReviewerState: model.ReviewerProposed,
		Rationale:     "keyword match",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.CreateTag(context.Background(), tag))
	return tag
}

func TestApply_ApprovePassageDerivesPublishState(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	passage := seedPassage(t, st)

	record, err := svc.Apply(ctx, DecisionInput{
		Kind:          model.ReviewPassage,
		ObjectID:      passage.ID,
		Decision:      model.DecisionApprove,
		ReviewerID:    "curator_a",
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.ReviewerProposed), record.PreviousState)
	assert.Equal(t, string(model.ReviewerApproved), record.NewState)

	updated, err := st.GetPassage(ctx, passage.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewerApproved, updated.ReviewerState)
	assert.Equal(t, model.PublishEligible, updated.PublishState)

	events, err := st.ListAuditEvents(ctx, store.AuditFilter{ObjectID: passage.ID, Action: "review_decision"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestApply_RejectPassageBlocksPublish(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	passage := seedPassage(t, st)

	_, err := svc.Apply(ctx, DecisionInput{
		Kind:       model.ReviewPassage,
		ObjectID:   passage.ID,
		Decision:   model.DecisionReject,
		Notes:      "excerpt is catalogue boilerplate",
		ReviewerID: "curator_a",
	})
	require.NoError(t, err)

	updated, err := st.GetPassage(ctx, passage.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewerRejected, updated.ReviewerState)
	assert.Equal(t, model.PublishBlocked, updated.PublishState)
}

func TestApply_RejectWithoutNotesFails(t *testing.T) {
	svc, st := newTestService(t)
	passage := seedPassage(t, st)

	for _, decision := range []model.ReviewDecision{model.DecisionReject, model.DecisionNeedsRevision} {
		_, err := svc.Apply(context.Background(), DecisionInput{
			Kind:       model.ReviewPassage,
			ObjectID:   passage.ID,
			Decision:   decision,
			ReviewerID: "curator_a",
		})
		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
	}
}

func TestApply_TagNotesBecomeRationale(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	passage := seedPassage(t, st)
	tag := seedTag(t, st, passage.ID)

	_, err := svc.Apply(ctx, DecisionInput{
		Kind:       model.ReviewTag,
		ObjectID:   tag.ID,
		Decision:   model.DecisionNeedsRevision,
		Notes:      "term should be food_offering",
		ReviewerID: "curator_b",
	})
	require.NoError(t, err)

	updated, err := st.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewerNeedsRevision, updated.ReviewerState)
	assert.Equal(t, "term should be food_offering", updated.Rationale)
}

func TestApply_UnknownObject(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Apply(context.Background(), DecisionInput{
		Kind:       model.ReviewFlag,
		ObjectID:   "flg_nope",
		Decision:   model.DecisionApprove,
		ReviewerID: "curator_a",
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestApply_DecisionsAreAppendOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	passage := seedPassage(t, svc.store)

	_, err := svc.Apply(ctx, DecisionInput{
		Kind: model.ReviewPassage, ObjectID: passage.ID,
		Decision: model.DecisionNeedsRevision, Notes: "tighten the excerpt", ReviewerID: "curator_a",
	})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, DecisionInput{
		Kind: model.ReviewPassage, ObjectID: passage.ID,
		Decision: model.DecisionApprove, ReviewerID: "curator_b",
	})
	require.NoError(t, err)

	decisions, err := svc.Decisions(ctx, passage.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, string(model.ReviewerProposed), decisions[0].PreviousState)
	assert.Equal(t, string(model.ReviewerNeedsRevision), decisions[0].NewState)
	assert.Equal(t, string(model.ReviewerNeedsRevision), decisions[1].PreviousState)
	assert.Equal(t, string(model.ReviewerApproved), decisions[1].NewState)
}

func TestQueue_ListsProposedByKind(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	passage := seedPassage(t, st)
	tag := seedTag(t, st, passage.ID)

	passages, err := svc.Queue(ctx, model.ReviewPassage, 0)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, passage.ID, passages[0].ObjectID)

	tags, err := svc.Queue(ctx, model.ReviewTag, 0)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, tag.ID, tags[0].ObjectID)
	assert.Contains(t, tags[0].Summary, "liquid_libation")

	// Approved objects leave the queue.
	_, err = svc.Apply(ctx, DecisionInput{
		Kind: model.ReviewPassage, ObjectID: passage.ID,
		Decision: model.DecisionApprove, ReviewerID: "curator_a",
	})
	require.NoError(t, err)
	passages, err = svc.Queue(ctx, model.ReviewPassage, 0)
	require.NoError(t, err)
	assert.Empty(t, passages)

	_, err = svc.Queue(ctx, model.ReviewKind("group"), 0)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
