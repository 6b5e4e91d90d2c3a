// Package proposal generates reviewer-gated metadata for passages: ontology
// tags, cross-text commonality links, and attention flags. Proposals come
// from either a keyword heuristic or an LLM; both leave an immutable trace.
package proposal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
)

// maxPeerPassages bounds the peer scan for cross-text linking.
const maxPeerPassages = 200

// Store is the persistence surface for proposal output.
type Store interface {
	SuccessfulBundleTraceExists(ctx context.Context, passageID string) (bool, error)
	ListPeerPassages(ctx context.Context, limit int) ([]model.Passage, error)
	GetPassage(ctx context.Context, id string) (*model.Passage, error)
	WriteProposalTrace(ctx context.Context, trace *model.ProposalTrace) error
	CreateTag(ctx context.Context, tag *model.RitualPatternTag) error
	CreatePendingTerm(ctx context.Context, term *model.PendingTerm) error
	CreateLink(ctx context.Context, link *model.CommonalityLink) error
	CreateFlag(ctx context.Context, flag *model.FlagRecord) error
}

// TagProposal suggests one controlled-vocabulary annotation.
type TagProposal struct {
	Dimension   string   `json:"ontology_dimension"`
	Term        string   `json:"controlled_term"`
	Confidence  float64  `json:"confidence"`
	EvidenceIDs []string `json:"evidence_ids"`
	Rationale   string   `json:"rationale_note,omitempty"`
}

// LinkProposal suggests a cross-passage relation.
type LinkProposal struct {
	TargetPassageID string   `json:"target_passage_id"`
	RelationType    string   `json:"relation_type"`
	SimilarityScore float64  `json:"weighted_similarity_score"`
	EvidenceIDs     []string `json:"evidence_ids"`
	Rationale       string   `json:"rationale_note,omitempty"`
}

// FlagProposal raises a reviewer-attention flag.
type FlagProposal struct {
	FlagType    string   `json:"flag_type"`
	Severity    string   `json:"severity"`
	Rationale   string   `json:"rationale"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// Bundle is the complete proposal payload for one passage.
type Bundle struct {
	Tags  []TagProposal  `json:"tags"`
	Links []LinkProposal `json:"links"`
	Flags []FlagProposal `json:"flags"`
}

// Result counts what a proposal run persisted.
type Result struct {
	TagsCreated  int
	LinksCreated int
	FlagsCreated int
	TraceID      string
}

// Generator produces a bundle for a passage given its peers. Implementations
// are the keyword heuristic and the LLM client.
type Generator interface {
	Generate(ctx context.Context, passage *model.Passage, peers []model.Passage, req GenerateRequest) (Bundle, string, *model.ProposalTrace, error)
}

// GenerateRequest carries trace provenance into a generator.
type GenerateRequest struct {
	IdempotencyKey string
	Actor          string
}

// Engine runs the propose-validate-store cycle.
type Engine struct {
	store     Store
	generator Generator
}

// NewEngine wires the proposal engine.
func NewEngine(store Store, generator Generator) *Engine {
	return &Engine{store: store, generator: generator}
}

// ProposeForPassage generates and persists a proposal bundle. A passage that
// already has a successful bundle trace is skipped. Invalid individual
// proposals are logged and dropped without failing the run; an unknown
// ontology term is queued for vocabulary triage instead of being stored.
func (e *Engine) ProposeForPassage(ctx context.Context, passage *model.Passage, actor, idempotencyRoot string) (Result, error) {
	exists, err := e.store.SuccessfulBundleTraceExists(ctx, passage.ID)
	if err != nil {
		return Result{}, eris.Wrap(err, "proposal: check existing trace")
	}
	if exists {
		return Result{}, nil
	}

	peers, err := e.store.ListPeerPassages(ctx, maxPeerPassages)
	if err != nil {
		return Result{}, eris.Wrap(err, "proposal: list peers")
	}

	bundle, _, trace, err := e.generator.Generate(ctx, passage, peers, GenerateRequest{
		IdempotencyKey: idempotencyRoot + ":" + passage.ID,
		Actor:          actor,
	})
	if trace != nil {
		if traceErr := e.store.WriteProposalTrace(ctx, trace); traceErr != nil {
			return Result{}, eris.Wrap(traceErr, "proposal: write trace")
		}
	}
	if err != nil {
		return Result{}, err
	}

	result := Result{TraceID: trace.ID}
	for _, tp := range bundle.Tags {
		created, err := e.storeTagOrPending(ctx, passage, tp)
		if err != nil {
			if !model.IsValidation(err) {
				return result, err
			}
			zap.L().Warn("proposal: skipped invalid tag", zap.String("passage_id", passage.ID), zap.Error(err))
			continue
		}
		if created {
			result.TagsCreated++
		}
	}
	for _, lp := range bundle.Links {
		if err := e.storeLink(ctx, passage, lp); err != nil {
			if !model.IsValidation(err) {
				return result, err
			}
			zap.L().Warn("proposal: skipped invalid link", zap.String("passage_id", passage.ID), zap.Error(err))
			continue
		}
		result.LinksCreated++
	}
	for _, fp := range bundle.Flags {
		if err := e.storeFlag(ctx, passage, fp); err != nil {
			if !model.IsValidation(err) {
				return result, err
			}
			zap.L().Warn("proposal: skipped invalid flag", zap.String("passage_id", passage.ID), zap.Error(err))
			continue
		}
		result.FlagsCreated++
	}
	return result, nil
}

func (e *Engine) storeTagOrPending(ctx context.Context, passage *model.Passage, tp TagProposal) (bool, error) {
	evidenceIDs, err := validateEvidenceIDs(tp.EvidenceIDs, map[string]bool{passage.ID: true}, "tag")
	if err != nil {
		return false, err
	}
	if err := model.ValidateConfidence(tp.Confidence, "confidence"); err != nil {
		return false, err
	}
	if !model.ValidOntologyTerm(tp.Dimension, tp.Term) {
		rationale := tp.Rationale
		if rationale == "" {
			rationale = "Generated by proposal engine"
		}
		pending := &model.PendingTerm{
			ID:          model.NewID("vpt"),
			CreatedAt:   time.Now().UTC(),
			Dimension:   tp.Dimension,
			Term:        tp.Term,
			Rationale:   rationale,
			EvidenceIDs: evidenceIDs,
			Status:      "pending",
		}
		if err := e.store.CreatePendingTerm(ctx, pending); err != nil {
			return false, eris.Wrap(err, "proposal: queue pending term")
		}
		return false, nil
	}

	now := time.Now().UTC()
	tag := &model.RitualPatternTag{
		ID:            model.NewID("tag"),
		CreatedAt:     now,
		UpdatedAt:     now,
		Dimension:     tp.Dimension,
		Term:          tp.Term,
		Confidence:    tp.Confidence,
		EvidenceIDs:   evidenceIDs,
		ReviewerState: model.ReviewerProposed,
		Rationale:     tp.Rationale,
	}
	if err := e.store.CreateTag(ctx, tag); err != nil {
		return false, eris.Wrap(err, "proposal: store tag")
	}
	return true, nil
}

func (e *Engine) storeLink(ctx context.Context, passage *model.Passage, lp LinkProposal) error {
	if err := model.ValidateRelationType(lp.RelationType); err != nil {
		return err
	}
	if lp.SimilarityScore < 0.0 || lp.SimilarityScore > 1.0 {
		return model.Invalid("weighted_similarity_score must be in [0,1]")
	}
	target, err := e.store.GetPassage(ctx, lp.TargetPassageID)
	if err != nil {
		return eris.Wrap(err, "proposal: load link target")
	}
	if target == nil {
		return model.Invalid("invalid target passage for link: %s", lp.TargetPassageID)
	}
	evidenceIDs, err := validateEvidenceIDs(lp.EvidenceIDs, map[string]bool{passage.ID: true, lp.TargetPassageID: true}, "link")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	link := &model.CommonalityLink{
		ID:              model.NewID("lnk"),
		CreatedAt:       now,
		UpdatedAt:       now,
		SourcePassageID: passage.ID,
		TargetPassageID: lp.TargetPassageID,
		RelationType:    lp.RelationType,
		SimilarityScore: lp.SimilarityScore,
		EvidenceIDs:     evidenceIDs,
		ReviewerState:   model.ReviewerProposed,
		DecisionNote:    lp.Rationale,
	}
	if err := e.store.CreateLink(ctx, link); err != nil {
		return eris.Wrap(err, "proposal: store link")
	}
	return nil
}

func (e *Engine) storeFlag(ctx context.Context, passage *model.Passage, fp FlagProposal) error {
	if err := model.ValidateFlagType(fp.FlagType); err != nil {
		return err
	}
	if strings.TrimSpace(fp.Rationale) == "" {
		return model.Invalid("flag rationale is required")
	}
	evidenceIDs, err := validateEvidenceIDs(fp.EvidenceIDs, map[string]bool{passage.ID: true}, "flag")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	flag := &model.FlagRecord{
		ID:            model.NewID("flg"),
		CreatedAt:     now,
		UpdatedAt:     now,
		PassageID:     passage.ID,
		FlagType:      fp.FlagType,
		Severity:      fp.Severity,
		Rationale:     fp.Rationale,
		EvidenceIDs:   evidenceIDs,
		ReviewerState: model.ReviewerProposed,
	}
	if err := e.store.CreateFlag(ctx, flag); err != nil {
		return eris.Wrap(err, "proposal: store flag")
	}
	return nil
}

func validateEvidenceIDs(ids []string, allowed map[string]bool, kind string) ([]string, error) {
	if len(ids) == 0 {
		return nil, model.Invalid("%s proposal must include evidence_ids", kind)
	}
	seen := make(map[string]bool, len(ids))
	var cleaned []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !allowed[id] {
			return nil, model.Invalid("%s proposal evidence_ids contain invalid ID: %s", kind, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return nil, model.Invalid("%s proposal evidence_ids cannot be blank", kind)
	}
	return cleaned, nil
}

func marshalBundle(b Bundle) string {
	raw, err := json.Marshal(b)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
