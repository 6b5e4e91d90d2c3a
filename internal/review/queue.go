package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

// QueueItem is one proposed object awaiting a verdict.
type QueueItem struct {
	Kind      model.ReviewKind `json:"object_kind"`
	ObjectID  string           `json:"object_id"`
	Summary   string           `json:"summary"`
	CreatedAt time.Time        `json:"created_at"`
}

// Queue lists objects of one kind still in the proposed state, oldest first
// for passages and in listing order for the annotation kinds.
func (s *Service) Queue(ctx context.Context, kind model.ReviewKind, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	switch kind {
	case model.ReviewPassage:
		passages, err := s.store.ListPassages(ctx, store.PassageFilter{
			ReviewerState: model.ReviewerProposed,
			Limit:         limit,
		})
		if err != nil {
			return nil, eris.Wrap(err, "review: list proposed passages")
		}
		items := make([]QueueItem, 0, len(passages))
		for _, p := range passages {
			items = append(items, QueueItem{
				Kind:      model.ReviewPassage,
				ObjectID:  p.ID,
				Summary:   summarize(p.Normalized, 160),
				CreatedAt: p.CreatedAt,
			})
		}
		return items, nil
	case model.ReviewTag:
		tags, err := s.store.ListTagsByState(ctx, model.ReviewerProposed, limit)
		if err != nil {
			return nil, eris.Wrap(err, "review: list proposed tags")
		}
		items := make([]QueueItem, 0, len(tags))
		for _, t := range tags {
			items = append(items, QueueItem{
				Kind:      model.ReviewTag,
				ObjectID:  t.ID,
				Summary:   fmt.Sprintf("%s/%s (%.2f)", t.Dimension, t.Term, t.Confidence),
				CreatedAt: t.CreatedAt,
			})
		}
		return items, nil
	case model.ReviewLink:
		links, err := s.store.ListLinksByState(ctx, model.ReviewerProposed, limit)
		if err != nil {
			return nil, eris.Wrap(err, "review: list proposed links")
		}
		items := make([]QueueItem, 0, len(links))
		for _, l := range links {
			items = append(items, QueueItem{
				Kind:      model.ReviewLink,
				ObjectID:  l.ID,
				Summary:   fmt.Sprintf("%s -> %s (%s)", l.SourcePassageID, l.TargetPassageID, l.RelationType),
				CreatedAt: l.CreatedAt,
			})
		}
		return items, nil
	case model.ReviewFlag:
		flags, err := s.store.ListFlagsByState(ctx, model.ReviewerProposed, limit)
		if err != nil {
			return nil, eris.Wrap(err, "review: list proposed flags")
		}
		items := make([]QueueItem, 0, len(flags))
		for _, f := range flags {
			items = append(items, QueueItem{
				Kind:      model.ReviewFlag,
				ObjectID:  f.ID,
				Summary:   fmt.Sprintf("%s/%s: %s", f.FlagType, f.Severity, summarize(f.Rationale, 120)),
				CreatedAt: f.CreatedAt,
			})
		}
		return items, nil
	default:
		return nil, model.Invalid("unsupported review object kind: %s", kind)
	}
}

// Decisions returns the append-only verdict history for one object.
func (s *Service) Decisions(ctx context.Context, objectID string) ([]model.ReviewDecisionRecord, error) {
	records, err := s.store.ListReviewDecisions(ctx, objectID)
	if err != nil {
		return nil, eris.Wrap(err, "review: list decisions")
	}
	return records, nil
}

func summarize(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
