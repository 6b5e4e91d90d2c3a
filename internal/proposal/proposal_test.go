package proposal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/pkg/llm"
)

type memProposalStore struct {
	passages     map[string]*model.Passage
	traces       []*model.ProposalTrace
	tags         []*model.RitualPatternTag
	pendingTerms []*model.PendingTerm
	links        []*model.CommonalityLink
	flags        []*model.FlagRecord
}

func newMemProposalStore() *memProposalStore {
	return &memProposalStore{passages: map[string]*model.Passage{}}
}

func (s *memProposalStore) SuccessfulBundleTraceExists(_ context.Context, passageID string) (bool, error) {
	for _, tr := range s.traces {
		if tr.ObjectID == passageID && tr.ProposalType == "bundle" && tr.FailureReason == "" {
			return true, nil
		}
	}
	return false, nil
}

func (s *memProposalStore) ListPeerPassages(_ context.Context, limit int) ([]model.Passage, error) {
	var out []model.Passage
	for _, p := range s.passages {
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memProposalStore) GetPassage(_ context.Context, id string) (*model.Passage, error) {
	return s.passages[id], nil
}

func (s *memProposalStore) WriteProposalTrace(_ context.Context, trace *model.ProposalTrace) error {
	s.traces = append(s.traces, trace)
	return nil
}

func (s *memProposalStore) CreateTag(_ context.Context, tag *model.RitualPatternTag) error {
	s.tags = append(s.tags, tag)
	return nil
}

func (s *memProposalStore) CreatePendingTerm(_ context.Context, term *model.PendingTerm) error {
	s.pendingTerms = append(s.pendingTerms, term)
	return nil
}

func (s *memProposalStore) CreateLink(_ context.Context, link *model.CommonalityLink) error {
	s.links = append(s.links, link)
	return nil
}

func (s *memProposalStore) CreateFlag(_ context.Context, flag *model.FlagRecord) error {
	s.flags = append(s.flags, flag)
	return nil
}

type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ string) (llm.Completion, error) {
	i := c.calls
	c.calls++
	text := "{}"
	if i < len(c.responses) {
		text = c.responses[i]
	}
	return llm.Completion{Text: text, Model: "test-model"}, nil
}

func englishPassage(id, textID, normalized string) *model.Passage {
	return &model.Passage{
		ID:               id,
		TextID:           textID,
		Normalized:       normalized,
		DetectedLangCode: "eng",
	}
}

func TestHeuristicTagsFromKeywords(t *testing.T) {
	passage := englishPassage("psg_1", "txt_1",
		"At dawn pour the libation and trace the circle before the offering.")
	bundle := heuristicBundle(passage, nil)

	require.NotEmpty(t, bundle.Tags)
	assert.LessOrEqual(t, len(bundle.Tags), 3)
	dims := map[string]string{}
	for _, tag := range bundle.Tags {
		dims[tag.Dimension] = tag.Term
		assert.InDelta(t, 0.68, tag.Confidence, 1e-9)
		assert.Equal(t, []string{"psg_1"}, tag.EvidenceIDs)
	}
	assert.Equal(t, "dawn_operation", dims["time_timing"])
	assert.Empty(t, bundle.Flags)
}

func TestHeuristicFallbackTag(t *testing.T) {
	passage := englishPassage("psg_1", "txt_1", "Nothing topical appears in this text at all.")
	bundle := heuristicBundle(passage, nil)

	require.Len(t, bundle.Tags, 1)
	assert.Equal(t, "outcome_claim", bundle.Tags[0].Dimension)
	assert.Equal(t, "uncertain_or_symbolic", bundle.Tags[0].Term)
	assert.InDelta(t, 0.51, bundle.Tags[0].Confidence, 1e-9)
}

func TestHeuristicFlagsNonEnglishOriginal(t *testing.T) {
	passage := englishPassage("psg_1", "txt_1", "Pour the libation at dawn.")
	passage.DetectedLangCode = "ang"
	bundle := heuristicBundle(passage, nil)

	require.Len(t, bundle.Flags, 1)
	assert.Equal(t, "uncertain_translation", bundle.Flags[0].FlagType)
	assert.Equal(t, "medium", bundle.Flags[0].Severity)
}

func TestHeuristicLinksBestPeerAcrossTexts(t *testing.T) {
	passage := englishPassage("psg_1", "txt_1",
		"pour the libation slowly within the circle and invoke protection for the household")
	samePeer := *englishPassage("psg_2", "txt_1",
		"pour the libation slowly within the circle and invoke protection for the household")
	crossPeer := *englishPassage("psg_3", "txt_2",
		"pour the libation slowly within the circle and invoke protection for the village")
	farPeer := *englishPassage("psg_4", "txt_3", "quarterly grain accounts ledger")

	bundle := heuristicBundle(passage, []model.Passage{samePeer, crossPeer, farPeer})
	require.Len(t, bundle.Links, 1)
	link := bundle.Links[0]
	assert.Equal(t, "psg_3", link.TargetPassageID)
	assert.Equal(t, "sharesPatternWith", link.RelationType)
	assert.GreaterOrEqual(t, link.SimilarityScore, 0.35)
	assert.Equal(t, []string{"psg_1", "psg_3"}, link.EvidenceIDs)
}

func TestProposeForPassagePersistsBundle(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1",
		"At dawn pour the libation within the circle as an offering of protection.")
	store.passages["psg_1"] = passage

	engine := NewEngine(store, NewHeuristicGenerator())
	got, err := engine.ProposeForPassage(context.Background(), passage, "tester", "job_1:1")
	require.NoError(t, err)

	assert.Greater(t, got.TagsCreated, 0)
	assert.NotEmpty(t, got.TraceID)
	require.Len(t, store.traces, 1)
	assert.Equal(t, "job_1:1:psg_1", store.traces[0].IdempotencyKey)
	assert.Empty(t, store.traces[0].FailureReason)
	assert.Len(t, store.tags, got.TagsCreated)
}

func TestProposeForPassageSkipsWhenTraceExists(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1", "At dawn pour the libation.")
	store.passages["psg_1"] = passage
	store.traces = append(store.traces, &model.ProposalTrace{
		ObjectType: "passage", ObjectID: "psg_1", ProposalType: "bundle",
	})

	engine := NewEngine(store, NewHeuristicGenerator())
	got, err := engine.ProposeForPassage(context.Background(), passage, "tester", "job_1:1")
	require.NoError(t, err)
	assert.Zero(t, got.TagsCreated)
	assert.Empty(t, got.TraceID)
	assert.Len(t, store.traces, 1)
	assert.Empty(t, store.tags)
}

func TestUnknownOntologyTermQueuedAsPending(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1", "text")
	store.passages["psg_1"] = passage

	engine := NewEngine(store, NewHeuristicGenerator())
	created, err := engine.storeTagOrPending(context.Background(), passage, TagProposal{
		Dimension:   "time_timing",
		Term:        "no_such_term",
		Confidence:  0.6,
		EvidenceIDs: []string{"psg_1"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, store.pendingTerms, 1)
	assert.Equal(t, "no_such_term", store.pendingTerms[0].Term)
	assert.Equal(t, "pending", store.pendingTerms[0].Status)
	assert.Empty(t, store.tags)
}

func TestInvalidEvidenceIDsRejected(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1", "text")
	store.passages["psg_1"] = passage

	engine := NewEngine(store, NewHeuristicGenerator())
	_, err := engine.storeTagOrPending(context.Background(), passage, TagProposal{
		Dimension:   "time_timing",
		Term:        "dawn_operation",
		Confidence:  0.6,
		EvidenceIDs: []string{"psg_other"},
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = engine.storeTagOrPending(context.Background(), passage, TagProposal{
		Dimension:  "time_timing",
		Term:       "dawn_operation",
		Confidence: 0.6,
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestInvalidProposalsSkippedNotFatal(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1", "At dawn pour the libation.")
	store.passages["psg_1"] = passage

	client := &scriptedClient{responses: []string{
		`{"tags":[{"ontology_dimension":"time_timing","controlled_term":"dawn_operation","confidence":0.8,"evidence_ids":["psg_1"]}],
		  "links":[{"target_passage_id":"psg_missing","relation_type":"sharesPatternWith","weighted_similarity_score":0.5,"evidence_ids":["psg_1","psg_missing"]}],
		  "flags":[{"flag_type":"not_a_real_flag","severity":"low","rationale":"x","evidence_ids":["psg_1"]}]}`,
	}}
	engine := NewEngine(store, NewLLMGenerator(client, "test-model"))

	got, err := engine.ProposeForPassage(context.Background(), passage, "tester", "job_1:1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TagsCreated)
	assert.Zero(t, got.LinksCreated)
	assert.Zero(t, got.FlagsCreated)
}

func TestLLMGeneratorHardFailWritesFailureTrace(t *testing.T) {
	store := newMemProposalStore()
	passage := englishPassage("psg_1", "txt_1", "At dawn pour the libation.")
	store.passages["psg_1"] = passage

	client := &scriptedClient{responses: []string{"garbage", "more garbage"}}
	engine := NewEngine(store, NewLLMGenerator(client, "test-model"))

	_, err := engine.ProposeForPassage(context.Background(), passage, "tester", "job_1:1")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, 2, client.calls)

	require.Len(t, store.traces, 1)
	assert.Contains(t, store.traces[0].FailureReason, "bundle_validation_failed")
	assert.Equal(t, 1, store.traces[0].RetryCount)
}
