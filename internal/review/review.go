// Package review applies operator verdicts to proposed passages, tags,
// links, and flags. Decisions are append-only, every application emits an
// audit event, and passage publish state is derived from the verdict.
package review

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

// DefaultQueueLimit bounds one review-queue page.
const DefaultQueueLimit = 50

// Service mediates the review workflow over the fixed reviewable kinds.
type Service struct {
	store store.Store
}

// NewService wires the review service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// DecisionInput is one operator verdict on a reviewable object.
type DecisionInput struct {
	Kind          model.ReviewKind
	ObjectID      string
	Decision      model.ReviewDecision
	Notes         string
	ReviewerID    string
	CorrelationID string
}

// Apply validates and records a verdict, moves the object's reviewer state,
// and derives the passage publish state. Reject and needs_revision require
// notes.
func (s *Service) Apply(ctx context.Context, in DecisionInput) (*model.ReviewDecisionRecord, error) {
	if err := model.ValidateReviewInput(in.Decision, in.Notes); err != nil {
		return nil, err
	}
	newState := stateFor(in.Decision)

	previous, err := s.transition(ctx, in, newState)
	if err != nil {
		return nil, err
	}

	record := &model.ReviewDecisionRecord{
		ID:            model.NewID("dec"),
		ObjectKind:    in.Kind,
		ObjectID:      in.ObjectID,
		ReviewerID:    in.ReviewerID,
		Decision:      in.Decision,
		Notes:         in.Notes,
		PreviousState: string(previous),
		NewState:      string(newState),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateReviewDecision(ctx, record); err != nil {
		return nil, eris.Wrap(err, "review: record decision")
	}

	event := &model.AuditEvent{
		ID:            model.NewID("aud"),
		Actor:         in.ReviewerID,
		Action:        "review_decision",
		ObjectType:    string(in.Kind),
		ObjectID:      in.ObjectID,
		CorrelationID: in.CorrelationID,
		PreviousState: string(previous),
		NewState:      string(newState),
		Metadata:      map[string]any{"decision": string(in.Decision), "notes": in.Notes},
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.WriteAuditEvent(ctx, event); err != nil {
		zap.L().Error("review: audit write failed",
			zap.String("object_id", in.ObjectID), zap.Error(err))
	}

	zap.L().Info("review: decision applied",
		zap.String("kind", string(in.Kind)),
		zap.String("object_id", in.ObjectID),
		zap.String("decision", string(in.Decision)),
		zap.String("reviewer", in.ReviewerID))
	return record, nil
}

// transition dispatches on the reviewable kind, mutating the typed record.
func (s *Service) transition(ctx context.Context, in DecisionInput, newState model.ReviewerState) (model.ReviewerState, error) {
	switch in.Kind {
	case model.ReviewPassage:
		return s.transitionPassage(ctx, in, newState)
	case model.ReviewTag:
		return s.transitionTag(ctx, in, newState)
	case model.ReviewLink:
		return s.transitionLink(ctx, in, newState)
	case model.ReviewFlag:
		return s.transitionFlag(ctx, in, newState)
	default:
		return "", model.Invalid("unsupported review object kind: %s", in.Kind)
	}
}

func (s *Service) transitionPassage(ctx context.Context, in DecisionInput, newState model.ReviewerState) (model.ReviewerState, error) {
	passage, err := s.store.GetPassage(ctx, in.ObjectID)
	if err != nil {
		return "", eris.Wrap(err, "review: load passage")
	}
	if passage == nil {
		return "", model.Invalid("object not found: passage:%s", in.ObjectID)
	}
	previous := passage.ReviewerState
	passage.ReviewerState = newState
	// Publish eligibility follows directly from approval.
	if newState == model.ReviewerApproved {
		passage.PublishState = model.PublishEligible
	} else {
		passage.PublishState = model.PublishBlocked
	}
	if err := s.store.UpdatePassage(ctx, passage); err != nil {
		return "", eris.Wrap(err, "review: update passage")
	}
	return previous, nil
}

func (s *Service) transitionTag(ctx context.Context, in DecisionInput, newState model.ReviewerState) (model.ReviewerState, error) {
	tag, err := s.store.GetTag(ctx, in.ObjectID)
	if err != nil {
		return "", eris.Wrap(err, "review: load tag")
	}
	if tag == nil {
		return "", model.Invalid("object not found: tag:%s", in.ObjectID)
	}
	previous := tag.ReviewerState
	tag.ReviewerState = newState
	if in.Notes != "" {
		tag.Rationale = in.Notes
	}
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return "", eris.Wrap(err, "review: update tag")
	}
	return previous, nil
}

func (s *Service) transitionLink(ctx context.Context, in DecisionInput, newState model.ReviewerState) (model.ReviewerState, error) {
	link, err := s.store.GetLink(ctx, in.ObjectID)
	if err != nil {
		return "", eris.Wrap(err, "review: load link")
	}
	if link == nil {
		return "", model.Invalid("object not found: link:%s", in.ObjectID)
	}
	previous := link.ReviewerState
	link.ReviewerState = newState
	link.DecisionNote = in.Notes
	if err := s.store.UpdateLink(ctx, link); err != nil {
		return "", eris.Wrap(err, "review: update link")
	}
	return previous, nil
}

func (s *Service) transitionFlag(ctx context.Context, in DecisionInput, newState model.ReviewerState) (model.ReviewerState, error) {
	flag, err := s.store.GetFlag(ctx, in.ObjectID)
	if err != nil {
		return "", eris.Wrap(err, "review: load flag")
	}
	if flag == nil {
		return "", model.Invalid("object not found: flag:%s", in.ObjectID)
	}
	previous := flag.ReviewerState
	flag.ReviewerState = newState
	if err := s.store.UpdateFlag(ctx, flag); err != nil {
		return "", eris.Wrap(err, "review: update flag")
	}
	return previous, nil
}

func stateFor(decision model.ReviewDecision) model.ReviewerState {
	switch decision {
	case model.DecisionApprove:
		return model.ReviewerApproved
	case model.DecisionReject:
		return model.ReviewerRejected
	default:
		return model.ReviewerNeedsRevision
	}
}
