// Package search runs operator-facing lookups across passages, tags, links,
// and flags, ranking hits by a simple token-overlap score with a context
// snippet around the first match.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

const (
	// DefaultLimit caps one result page unless the caller asks for more.
	DefaultLimit = 100
	// MaxLimit is the hard ceiling on returned hits.
	MaxLimit = 500
	// scanLimit bounds how many rows of each kind are considered per state.
	scanLimit = 500

	snippetLead  = 80
	snippetTail  = 120
	snippetPlain = 220
)

// reviewStates is every reviewer state, scanned when no state filter is set.
var reviewStates = []model.ReviewerState{
	model.ReviewerProposed,
	model.ReviewerApproved,
	model.ReviewerRejected,
	model.ReviewerNeedsRevision,
}

// Params filters one search. At least one of Query, Tag, Region, or
// ReviewState must be set.
type Params struct {
	Query       string
	Kind        model.ReviewKind // empty means all kinds
	Tag         string           // controlled term, narrows passages and tags
	Region      string           // origin region of the owning text
	ReviewState model.ReviewerState
	Limit       int
}

// Hit is one ranked search result.
type Hit struct {
	Kind        model.ReviewKind    `json:"object_type"`
	ObjectID    string              `json:"object_id"`
	Score       float64             `json:"score"`
	Snippet     string              `json:"snippet"`
	ReviewState model.ReviewerState `json:"review_state"`
}

// Service runs searches against the corpus store.
type Service struct {
	store store.Store
}

// NewService wires the search service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Records searches the requested kinds and returns hits ordered by score,
// ties broken by object ID for stable output.
func (s *Service) Records(ctx context.Context, params Params) ([]Hit, error) {
	query := strings.ToLower(strings.TrimSpace(params.Query))
	tokens := strings.Fields(query)
	if query == "" && params.Tag == "" && params.Region == "" && params.ReviewState == "" {
		return nil, model.Invalid("at least one search filter is required")
	}
	kinds, err := resolveKinds(params.Kind)
	if err != nil {
		return nil, err
	}
	states := reviewStates
	if params.ReviewState != "" {
		if !validState(params.ReviewState) {
			return nil, model.Invalid("unsupported review state: %s", params.ReviewState)
		}
		states = []model.ReviewerState{params.ReviewState}
	}

	var hits []Hit
	for _, kind := range kinds {
		var kindHits []Hit
		var err error
		switch kind {
		case model.ReviewPassage:
			kindHits, err = s.searchPassages(ctx, params, query, tokens, states)
		case model.ReviewTag:
			kindHits, err = s.searchTags(ctx, params, query, tokens, states)
		case model.ReviewLink:
			kindHits, err = s.searchLinks(ctx, query, tokens, states)
		case model.ReviewFlag:
			kindHits, err = s.searchFlags(ctx, query, tokens, states)
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, kindHits...)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ObjectID < hits[j].ObjectID
	})
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Service) searchPassages(ctx context.Context, params Params, query string, tokens []string, states []model.ReviewerState) ([]Hit, error) {
	// Tag filter narrows passages to the tag's evidence set.
	var evidence map[string]bool
	if params.Tag != "" {
		ids, err := s.tagEvidence(ctx, params.Tag)
		if err != nil {
			return nil, err
		}
		evidence = ids
	}

	regions := map[string]string{}
	var hits []Hit
	for _, state := range states {
		passages, err := s.store.ListPassages(ctx, store.PassageFilter{ReviewerState: state, Limit: scanLimit})
		if err != nil {
			return nil, eris.Wrap(err, "search: list passages")
		}
		for _, p := range passages {
			if evidence != nil && !evidence[p.ID] {
				continue
			}
			if params.Region != "" {
				region, err := s.textRegion(ctx, regions, p.TextID)
				if err != nil {
					return nil, err
				}
				if region != params.Region {
					continue
				}
			}
			score, snippet := scoreAndSnippet(p.Normalized+"\n"+p.Original, query, tokens)
			if query != "" && score <= 0 {
				continue
			}
			hits = append(hits, Hit{Kind: model.ReviewPassage, ObjectID: p.ID, Score: score, Snippet: snippet, ReviewState: p.ReviewerState})
		}
	}
	return hits, nil
}

func (s *Service) searchTags(ctx context.Context, params Params, query string, tokens []string, states []model.ReviewerState) ([]Hit, error) {
	var hits []Hit
	for _, state := range states {
		tags, err := s.store.ListTagsByState(ctx, state, scanLimit)
		if err != nil {
			return nil, eris.Wrap(err, "search: list tags")
		}
		for _, tag := range tags {
			if params.Tag != "" && tag.Term != params.Tag {
				continue
			}
			score, snippet := scoreAndSnippet(fmt.Sprintf("%s %s %s", tag.Dimension, tag.Term, tag.Rationale), query, tokens)
			if query != "" && score <= 0 {
				continue
			}
			hits = append(hits, Hit{Kind: model.ReviewTag, ObjectID: tag.ID, Score: score, Snippet: snippet, ReviewState: tag.ReviewerState})
		}
	}
	return hits, nil
}

func (s *Service) searchLinks(ctx context.Context, query string, tokens []string, states []model.ReviewerState) ([]Hit, error) {
	var hits []Hit
	for _, state := range states {
		links, err := s.store.ListLinksByState(ctx, state, scanLimit)
		if err != nil {
			return nil, eris.Wrap(err, "search: list links")
		}
		for _, link := range links {
			text := fmt.Sprintf("%s %s %s %s", link.SourcePassageID, link.TargetPassageID, link.RelationType, link.DecisionNote)
			score, snippet := scoreAndSnippet(text, query, tokens)
			if query != "" && score <= 0 {
				continue
			}
			hits = append(hits, Hit{Kind: model.ReviewLink, ObjectID: link.ID, Score: score, Snippet: snippet, ReviewState: link.ReviewerState})
		}
	}
	return hits, nil
}

func (s *Service) searchFlags(ctx context.Context, query string, tokens []string, states []model.ReviewerState) ([]Hit, error) {
	var hits []Hit
	for _, state := range states {
		flags, err := s.store.ListFlagsByState(ctx, state, scanLimit)
		if err != nil {
			return nil, eris.Wrap(err, "search: list flags")
		}
		for _, flag := range flags {
			score, snippet := scoreAndSnippet(fmt.Sprintf("%s %s %s", flag.FlagType, flag.Severity, flag.Rationale), query, tokens)
			if query != "" && score <= 0 {
				continue
			}
			hits = append(hits, Hit{Kind: model.ReviewFlag, ObjectID: flag.ID, Score: score, Snippet: snippet, ReviewState: flag.ReviewerState})
		}
	}
	return hits, nil
}

// tagEvidence collects passage IDs cited by tags carrying the term.
func (s *Service) tagEvidence(ctx context.Context, term string) (map[string]bool, error) {
	ids := map[string]bool{}
	for _, state := range reviewStates {
		tags, err := s.store.ListTagsByState(ctx, state, scanLimit)
		if err != nil {
			return nil, eris.Wrap(err, "search: list tags for evidence")
		}
		for _, tag := range tags {
			if tag.Term != term {
				continue
			}
			for _, id := range tag.EvidenceIDs {
				if strings.HasPrefix(id, "psg_") {
					ids[id] = true
				}
			}
		}
	}
	return ids, nil
}

func (s *Service) textRegion(ctx context.Context, cache map[string]string, textID string) (string, error) {
	if region, ok := cache[textID]; ok {
		return region, nil
	}
	text, err := s.store.GetText(ctx, textID)
	if err != nil {
		return "", eris.Wrap(err, "search: load text region")
	}
	region := ""
	if text != nil {
		region = text.Region
	}
	cache[textID] = region
	return region, nil
}

// scoreAndSnippet ranks text against the query: a whole-phrase hit counts
// 1.0, plus the fraction of query tokens present, with a window around the
// first phrase match as the snippet.
func scoreAndSnippet(text, query string, tokens []string) (float64, string) {
	compact := strings.Join(strings.Fields(text), " ")
	lowered := strings.ToLower(compact)
	if query == "" {
		return 0.5, truncate(compact, 280)
	}

	score := 0.0
	if strings.Contains(lowered, query) {
		score += 1.0
	}
	hits := 0
	for _, token := range tokens {
		if strings.Contains(lowered, token) {
			hits++
		}
	}
	if len(tokens) > 0 {
		score += float64(hits) / float64(len(tokens))
	}

	index := strings.Index(lowered, query)
	if index < 0 {
		return score, truncate(compact, snippetPlain)
	}
	start := index - snippetLead
	if start < 0 {
		start = 0
	}
	end := index + len(query) + snippetTail
	if end > len(compact) {
		end = len(compact)
	}
	return score, compact[start:end]
}

func resolveKinds(kind model.ReviewKind) ([]model.ReviewKind, error) {
	if kind == "" {
		return []model.ReviewKind{model.ReviewPassage, model.ReviewTag, model.ReviewLink, model.ReviewFlag}, nil
	}
	switch kind {
	case model.ReviewPassage, model.ReviewTag, model.ReviewLink, model.ReviewFlag:
		return []model.ReviewKind{kind}, nil
	default:
		return nil, model.Invalid("unsupported object kind filter: %s", kind)
	}
}

func validState(state model.ReviewerState) bool {
	for _, s := range reviewStates {
		if s == state {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
