package witness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
)

// FuzzyMatch is the best-scoring candidate from a fuzzy scan.
type FuzzyMatch struct {
	Source model.SourceMaterial
	Score  float64
}

// Assignment reports how a source was clustered.
type Assignment struct {
	GroupID        string
	Method         model.MatchMethod
	Score          float64
	GroupStatus    model.GroupStatus
	JoinedExisting bool
}

// AssignGroup clusters a registered source into a witness group. Resolution
// order: exact path match, raw content hash, normalized-text hash, fuzzy
// token similarity against the most recent sources. A normalized-hash join
// increments the matched logical text's witness count.
func (e *Engine) AssignGroup(ctx context.Context, source *model.SourceMaterial, canonicalTitle, normalizedText, actor string) (Assignment, error) {
	if source.WitnessGroupID != "" {
		group, err := e.store.GetWitnessGroup(ctx, source.WitnessGroupID)
		if err != nil {
			return Assignment{}, eris.Wrap(err, "witness: load assigned group")
		}
		if group != nil {
			return Assignment{GroupID: group.ID, Method: group.MatchMethod, Score: group.MatchScore, GroupStatus: group.Status, JoinedExisting: true}, nil
		}
	}

	if byPath, err := e.store.SourceByPath(ctx, source.Path); err != nil {
		return Assignment{}, eris.Wrap(err, "witness: lookup by path")
	} else if byPath != nil && byPath.ID != source.ID && byPath.WitnessGroupID != "" {
		return e.join(ctx, source, byPath.WitnessGroupID, model.MatchExactHash, 1.0, "path match: "+source.Path, actor)
	}

	matches, err := e.store.SourcesByRawHash(ctx, source.RawSHA256)
	if err != nil {
		return Assignment{}, eris.Wrap(err, "witness: lookup by raw hash")
	}
	if sibling := firstGrouped(matches, source.ID); sibling != nil {
		return e.join(ctx, source, sibling.WitnessGroupID, model.MatchExactHash, 1.0, "byte-identical to "+sibling.ID, actor)
	}

	matches, err = e.store.SourcesByNormalizedHash(ctx, source.NormalizedSHA256)
	if err != nil {
		return Assignment{}, eris.Wrap(err, "witness: lookup by normalized hash")
	}
	if sibling := firstGrouped(matches, source.ID); sibling != nil {
		assignment, err := e.join(ctx, source, sibling.WitnessGroupID, model.MatchNormalizedHash, 1.0, "normalized text identical to "+sibling.ID, actor)
		if err != nil {
			return Assignment{}, err
		}
		if err := e.bumpSourceCount(ctx, sibling.TextID); err != nil {
			return Assignment{}, err
		}
		return assignment, nil
	}

	match, err := e.FindFuzzyMatch(ctx, normalizedText, canonicalTitle, source.ID)
	if err != nil {
		return Assignment{}, err
	}
	if match != nil && match.Score >= FuzzyMatchThreshold && match.Source.WitnessGroupID != "" {
		reason := fmt.Sprintf("fuzzy similarity %.4f to %s", match.Score, match.Source.ID)
		return e.join(ctx, source, match.Source.WitnessGroupID, model.MatchFuzzy, match.Score, reason, actor)
	}

	status := model.GroupActive
	method := model.MatchExactHash
	score := 1.0
	reason := "first witness of its text"
	if match != nil && match.Score >= FuzzyReviewThreshold {
		status = model.GroupNeedsReview
		method = model.MatchFuzzy
		score = match.Score
		reason = fmt.Sprintf("borderline fuzzy similarity %.4f to %s", match.Score, match.Source.ID)
	}
	return e.createGroup(ctx, source, method, score, status, reason, actor)
}

// EnsureGroup guarantees the source belongs to a group, creating a fresh
// active one when nothing is assigned yet.
func (e *Engine) EnsureGroup(ctx context.Context, source *model.SourceMaterial, actor string) (*model.WitnessGroup, error) {
	if source.WitnessGroupID != "" {
		group, err := e.store.GetWitnessGroup(ctx, source.WitnessGroupID)
		if err != nil {
			return nil, eris.Wrap(err, "witness: load group")
		}
		if group != nil {
			return group, nil
		}
	}
	assignment, err := e.createGroup(ctx, source, model.MatchExactHash, 1.0, model.GroupActive, "first witness of its text", actor)
	if err != nil {
		return nil, err
	}
	return e.store.GetWitnessGroup(ctx, assignment.GroupID)
}

// AddMember records group membership, updating strategy and reason on an
// existing edge instead of duplicating it.
func (e *Engine) AddMember(ctx context.Context, groupID, sourceID string, role model.MemberRole, parserStrategy, reason string) error {
	existing, err := e.store.GetGroupMember(ctx, groupID, sourceID)
	if err != nil {
		return eris.Wrap(err, "witness: lookup member")
	}
	if existing != nil {
		changed := false
		if parserStrategy != "" && existing.ParserStrategy != parserStrategy {
			existing.ParserStrategy = parserStrategy
			changed = true
		}
		if reason != "" && !containsReason(existing.MembershipReason, reason) {
			existing.MembershipReason = reason
			changed = true
		}
		if !changed {
			return nil
		}
		return eris.Wrap(e.store.UpdateGroupMember(ctx, existing), "witness: update member")
	}
	member := &model.WitnessGroupMember{
		GroupID:          groupID,
		SourceID:         sourceID,
		Role:             role,
		ParserStrategy:   parserStrategy,
		MembershipReason: reason,
		CreatedAt:        time.Now().UTC(),
	}
	return eris.Wrap(e.store.CreateGroupMember(ctx, member), "witness: create member")
}

// FlagHeterogeneousParser marks the group needs_review when a member's parse
// strategy has no sibling using the same strategy.
func (e *Engine) FlagHeterogeneousParser(ctx context.Context, group *model.WitnessGroup, parserStrategy string) error {
	if parserStrategy == "" {
		return nil
	}
	members, err := e.store.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return eris.Wrap(err, "witness: list members")
	}
	for _, m := range members {
		if m.ParserStrategy == parserStrategy {
			return nil
		}
	}
	group.Status = model.GroupNeedsReview
	return eris.Wrap(e.store.UpdateWitnessGroup(ctx, group), "witness: flag group")
}

// FindFuzzyMatch scans the most recent sources and returns the best Jaccard
// match of the normalized text, with a bonus for similar canonical titles.
// Candidates that fail to re-parse are skipped.
func (e *Engine) FindFuzzyMatch(ctx context.Context, normalizedText, canonicalTitle, excludeSourceID string) (*FuzzyMatch, error) {
	newTokens := TokenSet(normalizedText)
	if len(newTokens) == 0 {
		return nil, nil
	}
	candidates, err := e.store.RecentSources(ctx, maxFuzzyCandidates)
	if err != nil {
		return nil, eris.Wrap(err, "witness: list fuzzy candidates")
	}

	var best *FuzzyMatch
	for _, candidate := range candidates {
		if candidate.ID == excludeSourceID {
			continue
		}
		parsed, err := e.parse(ctx, candidate.Path)
		if err != nil {
			zap.L().Debug("witness: skipping unparseable candidate",
				zap.String("source_id", candidate.ID), zap.Error(err))
			continue
		}
		score := Jaccard(newTokens, TokenSet(truncateRunes(parsed, 120000)))
		if canonicalTitle != "" {
			title := ""
			if text, err := e.store.GetText(ctx, candidate.TextID); err != nil {
				return nil, eris.Wrap(err, "witness: load candidate text")
			} else if text != nil {
				title = text.CanonicalTitle
			}
			switch ts := titleSimilarity(canonicalTitle, title); {
			case ts >= 0.8:
				score = min1(score + 0.10)
			case ts >= 0.5:
				score = min1(score + 0.05)
			}
		}
		if best == nil || score > best.Score {
			best = &FuzzyMatch{Source: candidate, Score: score}
		}
	}
	return best, nil
}

func (e *Engine) join(ctx context.Context, source *model.SourceMaterial, groupID string, method model.MatchMethod, score float64, reason, actor string) (Assignment, error) {
	group, err := e.store.GetWitnessGroup(ctx, groupID)
	if err != nil {
		return Assignment{}, eris.Wrap(err, "witness: load join group")
	}
	if group == nil {
		return e.createGroup(ctx, source, method, score, model.GroupActive, reason, actor)
	}
	source.WitnessGroupID = group.ID
	if err := e.store.UpdateSource(ctx, source); err != nil {
		return Assignment{}, eris.Wrap(err, "witness: assign source group")
	}
	if err := e.AddMember(ctx, group.ID, source.ID, model.RoleSecondary, "", reason); err != nil {
		return Assignment{}, err
	}
	return Assignment{GroupID: group.ID, Method: method, Score: score, GroupStatus: group.Status, JoinedExisting: true}, nil
}

func (e *Engine) createGroup(ctx context.Context, source *model.SourceMaterial, method model.MatchMethod, score float64, status model.GroupStatus, reason, actor string) (Assignment, error) {
	now := time.Now().UTC()
	group := &model.WitnessGroup{
		ID:              model.NewID("wgr"),
		CanonicalTextID: source.TextID,
		Status:          status,
		MatchMethod:     method,
		MatchScore:      score,
		CreatedBy:       actor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateWitnessGroup(ctx, group); err != nil {
		return Assignment{}, eris.Wrap(err, "witness: create group")
	}
	source.WitnessGroupID = group.ID
	if err := e.store.UpdateSource(ctx, source); err != nil {
		return Assignment{}, eris.Wrap(err, "witness: assign source group")
	}
	if err := e.AddMember(ctx, group.ID, source.ID, model.RolePrimary, "", reason); err != nil {
		return Assignment{}, err
	}
	return Assignment{GroupID: group.ID, Method: method, Score: score, GroupStatus: status}, nil
}

func (e *Engine) bumpSourceCount(ctx context.Context, textID string) error {
	text, err := e.store.GetText(ctx, textID)
	if err != nil {
		return eris.Wrap(err, "witness: load text")
	}
	if text == nil {
		return nil
	}
	text.SourceCount++
	return eris.Wrap(e.store.UpdateText(ctx, text), "witness: bump source count")
}

func firstGrouped(sources []model.SourceMaterial, excludeID string) *model.SourceMaterial {
	var best *model.SourceMaterial
	for i := range sources {
		s := &sources[i]
		if s.ID == excludeID || s.WitnessGroupID == "" {
			continue
		}
		if best == nil || s.CreatedAt.Before(best.CreatedAt) {
			best = s
		}
	}
	return best
}

func containsReason(existing, reason string) bool {
	return existing != "" && strings.Contains(existing, reason)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
