// Package workflow drives the ingestion and reprocess job state machines.
// Jobs move pending -> running -> completed, or back to pending while
// attempts remain and to dead_letter once they are exhausted. Every
// transition lands in the audit log.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/extract"
	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/parser"
	"github.com/three-lanterns/curator/internal/proposal"
	"github.com/three-lanterns/curator/internal/store"
	"github.com/three-lanterns/curator/internal/translate"
	"github.com/three-lanterns/curator/internal/witness"
	"github.com/three-lanterns/curator/pkg/freeref"
)

const (
	// DefaultMaxAttempts dead-letters a job after this many failed runs.
	DefaultMaxAttempts = 3
	// LowUsabilityThreshold auto-enqueues a reprocess job below this score.
	LowUsabilityThreshold = 0.60
	// referenceTimeout bounds one external reference lookup.
	referenceTimeout = 8 * time.Second

	workerActor = "worker"
)

// Options tunes pipeline behavior; zero values fall back to defaults.
type Options struct {
	Segmentation extract.Segmentation
	MaxAttempts  int
	// AIEnabled gates translation and proposal generation during ingestion.
	AIEnabled bool
}

// Pipeline wires the job state machines to their collaborators.
type Pipeline struct {
	store      store.Store
	parser     *parser.Parser
	witness    *witness.Engine
	builder    *extract.Builder
	translator translate.Translator
	proposals  *proposal.Engine
	refs       freeref.Searcher

	seg         extract.Segmentation
	maxAttempts int
	aiEnabled   bool
}

// NewPipeline builds the pipeline from explicitly constructed components.
func NewPipeline(
	st store.Store,
	p *parser.Parser,
	we *witness.Engine,
	builder *extract.Builder,
	translator translate.Translator,
	proposals *proposal.Engine,
	refs freeref.Searcher,
	opts Options,
) *Pipeline {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Segmentation.MinPassageLength <= 0 {
		opts.Segmentation.MinPassageLength = extract.DefaultMinPassageLength
	}
	return &Pipeline{
		store:       st,
		parser:      p,
		witness:     we,
		builder:     builder,
		translator:  translator,
		proposals:   proposals,
		refs:        refs,
		seg:         opts.Segmentation,
		maxAttempts: opts.MaxAttempts,
		aiEnabled:   opts.AIEnabled,
	}
}

// audit appends one transition event; audit failures are logged, never fatal,
// because the transition itself has already committed.
func (p *Pipeline) audit(ctx context.Context, actor, action, objectType, objectID, correlationID, prev, next string, metadata map[string]any) {
	event := &model.AuditEvent{
		ID:            model.NewID("aud"),
		Actor:         actor,
		Action:        action,
		ObjectType:    objectType,
		ObjectID:      objectID,
		CorrelationID: correlationID,
		PreviousState: prev,
		NewState:      next,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.WriteAuditEvent(ctx, event); err != nil {
		zap.L().Error("workflow: audit write failed",
			zap.String("action", action),
			zap.String("object_id", objectID),
			zap.Error(err))
	}
}

// classifyIngestionError maps a processing failure onto the fixed taxonomy.
func classifyIngestionError(err error) model.JobErrorCode {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "source file missing"):
		return model.ErrSourceMissing
	case strings.Contains(msg, "unsupported extension"):
		return model.ErrUnsupportedExtension
	case strings.Contains(msg, "no extractable"):
		return model.ErrParseNoText
	case strings.Contains(msg, "proposal"):
		return model.ErrProposalFailure
	default:
		return model.ErrJobProcessing
	}
}

// classifyReprocessError maps a reprocess failure onto the fixed taxonomy.
func classifyReprocessError(err error) model.JobErrorCode {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "passage not found"):
		return model.ErrPassageNotFound
	case strings.Contains(msg, "translate"):
		return model.ErrTranslationFailure
	case strings.Contains(msg, "reference"):
		return model.ErrReferenceLookup
	default:
		return model.ErrReprocessFailure
	}
}

// settleFailedJob decides retry versus dead-letter. Claim already counted
// the attempt, so a job dead-letters exactly when the failing attempt was
// the last one allowed.
func settleFailedJob(attemptCount, maxAttempts int) model.JobStatus {
	if attemptCount < maxAttempts {
		return model.JobPending
	}
	return model.JobDeadLetter
}

// errorContext captures the full wrapped chain for the job row.
func errorContext(err error) map[string]any {
	return map[string]any{
		"error": err.Error(),
		"chain": eris.ToString(err, true),
	}
}

func truncateString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
