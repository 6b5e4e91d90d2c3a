package witness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/dedupe"
	"github.com/three-lanterns/curator/internal/model"
)

// ConsolidationResult summarizes one consolidation run.
type ConsolidationResult struct {
	Consolidated int `json:"consolidated"`
	Sources      int `json:"sources"`
}

// Consolidate rebuilds the group's consolidated passages from scratch:
// passages with identical normalized hashes collapse into one entry, near
// matches above the similarity threshold merge keeping the longer excerpt,
// and everything else starts a new entry. Each constituent passage is linked
// with the similarity that justified its placement.
func (e *Engine) Consolidate(ctx context.Context, groupID string) (ConsolidationResult, error) {
	group, err := e.store.GetWitnessGroup(ctx, groupID)
	if err != nil {
		return ConsolidationResult{}, eris.Wrap(err, "witness: load group")
	}
	if group == nil {
		return ConsolidationResult{}, model.Invalid("witness group not found: %s", groupID)
	}

	if err := e.store.DeleteConsolidatedPassages(ctx, groupID); err != nil {
		return ConsolidationResult{}, eris.Wrap(err, "witness: clear consolidated passages")
	}

	members, err := e.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return ConsolidationResult{}, eris.Wrap(err, "witness: list members")
	}
	if len(members) == 0 {
		return ConsolidationResult{}, nil
	}
	sourceIDs := make([]string, 0, len(members))
	for _, m := range members {
		sourceIDs = append(sourceIDs, m.SourceID)
	}

	passages, err := e.store.PassagesBySourceIDs(ctx, sourceIDs)
	if err != nil {
		return ConsolidationResult{}, eris.Wrap(err, "witness: list member passages")
	}

	var consolidated []*model.ConsolidatedPassage
	now := time.Now().UTC()
	for i := range passages {
		passage := &passages[i]
		excerpt := passage.Normalized
		if excerpt == "" {
			excerpt = passage.Original
		}
		normalized := dedupe.NormalizeText(excerpt, 0)
		passageHash := hashText(normalized)

		var target *model.ConsolidatedPassage
		similarity := 1.0
		for _, item := range consolidated {
			if item.PassageHash == passageHash {
				target = item
				break
			}
		}
		if target == nil {
			if match, score := bestMerged(normalized, consolidated); match != nil && score >= PassageSimilarityThreshold {
				target = match
				similarity = score
			}
		}

		if target == nil {
			target = &model.ConsolidatedPassage{
				ID:             model.NewID("cps"),
				GroupID:        groupID,
				MergedText:     normalized,
				PassageHash:    passageHash,
				UsabilityScore: passage.UsabilityScore,
				RelevanceScore: passage.RelevanceScore,
				RelevanceState: passage.RelevanceState,
				CreatedAt:      now,
			}
			if err := e.store.CreateConsolidatedPassage(ctx, target); err != nil {
				return ConsolidationResult{}, eris.Wrap(err, "witness: create consolidated passage")
			}
			consolidated = append(consolidated, target)
		} else if len(normalized) > len(target.MergedText) {
			target.MergedText = normalized
			if err := e.store.UpdateConsolidatedPassage(ctx, target); err != nil {
				return ConsolidationResult{}, eris.Wrap(err, "witness: grow consolidated passage")
			}
		}

		link := &model.ConsolidatedPassageSource{
			ConsolidatedID:  target.ID,
			PassageID:       passage.ID,
			SourceID:        passage.SourceID,
			SimilarityScore: similarity,
			CreatedAt:       now,
		}
		if err := e.store.CreateConsolidatedPassageSource(ctx, link); err != nil {
			return ConsolidationResult{}, eris.Wrap(err, "witness: link consolidated passage")
		}
	}

	if group.Status != model.GroupArchived && group.Status != model.GroupActive {
		group.Status = model.GroupActive
		if err := e.store.UpdateWitnessGroup(ctx, group); err != nil {
			return ConsolidationResult{}, eris.Wrap(err, "witness: reactivate group")
		}
	}

	zap.L().Info("witness: group consolidated",
		zap.String("group_id", groupID),
		zap.Int("consolidated", len(consolidated)),
		zap.Int("sources", len(sourceIDs)))
	return ConsolidationResult{Consolidated: len(consolidated), Sources: len(sourceIDs)}, nil
}

func bestMerged(normalized string, consolidated []*model.ConsolidatedPassage) (*model.ConsolidatedPassage, float64) {
	tokens := TokenSet(normalized)
	var best *model.ConsolidatedPassage
	bestScore := 0.0
	for _, item := range consolidated {
		score := Jaccard(tokens, TokenSet(item.MergedText))
		if score > bestScore {
			bestScore = score
			best = item
		}
	}
	return best, bestScore
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
