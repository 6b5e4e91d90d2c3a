// Package witness clusters source materials into witness groups and
// consolidates near-duplicate passages within a group.
package witness

import (
	"context"
	"strings"

	"github.com/three-lanterns/curator/internal/dedupe"
	"github.com/three-lanterns/curator/internal/model"
)

const (
	// FuzzyMatchThreshold joins a source into an existing group outright.
	FuzzyMatchThreshold = 0.82
	// FuzzyReviewThreshold is close enough to warrant curator review but
	// not enough to merge automatically.
	FuzzyReviewThreshold = 0.70
	// PassageSimilarityThreshold merges passages during consolidation.
	PassageSimilarityThreshold = 0.92

	// maxFuzzyCandidates bounds the fuzzy scan to the most recent sources.
	maxFuzzyCandidates = 80
)

// Store is the persistence surface the clustering engine depends on.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	GetText(ctx context.Context, id string) (*model.Text, error)
	UpdateText(ctx context.Context, text *model.Text) error

	GetSource(ctx context.Context, id string) (*model.SourceMaterial, error)
	UpdateSource(ctx context.Context, source *model.SourceMaterial) error
	SourceByPath(ctx context.Context, path string) (*model.SourceMaterial, error)
	SourcesByRawHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
	SourcesByNormalizedHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
	RecentSources(ctx context.Context, limit int) ([]model.SourceMaterial, error)

	GetWitnessGroup(ctx context.Context, id string) (*model.WitnessGroup, error)
	CreateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error
	UpdateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error

	GetGroupMember(ctx context.Context, groupID, sourceID string) (*model.WitnessGroupMember, error)
	CreateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error
	UpdateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error
	ListGroupMembers(ctx context.Context, groupID string) ([]model.WitnessGroupMember, error)

	PassagesBySourceIDs(ctx context.Context, sourceIDs []string) ([]model.Passage, error)
	DeleteConsolidatedPassages(ctx context.Context, groupID string) error
	CreateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error
	UpdateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error
	CreateConsolidatedPassageSource(ctx context.Context, link *model.ConsolidatedPassageSource) error
}

// ParseFunc re-parses a candidate source file during fuzzy scanning.
type ParseFunc func(ctx context.Context, path string) (string, error)

// Engine implements witness-group assignment and consolidation.
type Engine struct {
	store Store
	parse ParseFunc
}

// NewEngine wires the clustering engine to its store and the parser used for
// fuzzy candidate comparison.
func NewEngine(store Store, parse ParseFunc) *Engine {
	return &Engine{store: store, parse: parse}
}

// TokenSet produces the comparison token set: whitespace-normalized,
// lowercased, tokens longer than two characters.
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(dedupe.NormalizeText(text, 0)) {
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

// Jaccard is set intersection over union; empty sets score zero.
func Jaccard(left, right map[string]bool) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0.0
	}
	overlap := 0
	for tok := range left {
		if right[tok] {
			overlap++
		}
	}
	union := len(left) + len(right) - overlap
	return float64(overlap) / float64(union)
}

func titleSimilarity(left, right string) float64 {
	return Jaccard(TokenSet(left), TokenSet(right))
}
