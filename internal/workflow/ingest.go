package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/dedupe"
	"github.com/three-lanterns/curator/internal/extract"
	"github.com/three-lanterns/curator/internal/model"
)

const rawTextArtifact = "raw_text"

// EnqueueIngestion creates a pending ingestion job for a source, keyed so a
// re-submission returns the existing job instead of duplicating it.
func (p *Pipeline) EnqueueIngestion(ctx context.Context, sourceID, parserStrategy, actor string) (*model.IngestionJob, error) {
	key := "ingest:" + sourceID
	if existing, err := p.store.IngestionJobByKey(ctx, key); err != nil {
		return nil, eris.Wrap(err, "workflow: lookup ingestion job by key")
	} else if existing != nil {
		return existing, nil
	}

	source, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: load source for ingestion")
	}
	if source == nil {
		return nil, model.Invalid("unknown source: %s", sourceID)
	}

	now := time.Now().UTC()
	job := &model.IngestionJob{
		ID:             model.NewID("job"),
		SourceID:       sourceID,
		IdempotencyKey: key,
		Status:         model.JobPending,
		MaxAttempts:    p.maxAttempts,
		ParserStrategy: parserStrategy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.store.CreateIngestionJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "workflow: create ingestion job")
	}
	p.audit(ctx, actor, "job_created", "ingestion_job", job.ID, job.ID, "", string(model.JobPending), map[string]any{
		"source_id": sourceID,
	})
	return job, nil
}

// RunIngestionJob processes one claimed job to completion or failure and
// settles its terminal state for this cycle.
func (p *Pipeline) RunIngestionJob(ctx context.Context, job *model.IngestionJob) error {
	p.audit(ctx, workerActor, "job_claimed", "ingestion_job", job.ID, job.ID,
		string(model.JobPending), string(model.JobRunning), map[string]any{"attempt": job.AttemptCount})

	groupID, err := p.processIngestion(ctx, job)
	if err == nil {
		job.Status = model.JobCompleted
		job.LastError = ""
		job.ErrorCode = ""
		job.ErrorContext = nil
		if updateErr := p.store.UpdateIngestionJob(ctx, job); updateErr != nil {
			return eris.Wrap(updateErr, "workflow: mark ingestion job completed")
		}
		p.recordAttempt(ctx, job.ID, job.AttemptCount, model.JobCompleted, "")
		p.audit(ctx, workerActor, "job_completed", "ingestion_job", job.ID, job.ID,
			string(model.JobRunning), string(model.JobCompleted), nil)

		if groupID != "" {
			if result, consErr := p.witness.Consolidate(ctx, groupID); consErr != nil {
				zap.L().Error("workflow: consolidation failed",
					zap.String("group_id", groupID), zap.Error(consErr))
			} else {
				zap.L().Info("workflow: group consolidated",
					zap.String("group_id", groupID),
					zap.Int("consolidated", result.Consolidated))
			}
		}
		return nil
	}

	code := classifyIngestionError(err)
	job.Status = settleFailedJob(job.AttemptCount, job.MaxAttempts)
	job.LastError = truncateString(err.Error(), 2000)
	job.ErrorCode = code
	job.ErrorContext = errorContext(err)
	if updateErr := p.store.UpdateIngestionJob(ctx, job); updateErr != nil {
		return eris.Wrap(updateErr, "workflow: settle failed ingestion job")
	}
	p.recordAttempt(ctx, job.ID, job.AttemptCount, model.JobFailed, job.LastError)
	p.audit(ctx, workerActor, "job_failed", "ingestion_job", job.ID, job.ID,
		string(model.JobRunning), string(job.Status), map[string]any{
			"error_code": string(code),
			"attempt":    job.AttemptCount,
		})
	zap.L().Warn("workflow: ingestion job failed",
		zap.String("job_id", job.ID),
		zap.String("error_code", string(code)),
		zap.String("status", string(job.Status)),
		zap.Error(err))
	return err
}

// processIngestion runs parse -> hash -> cluster -> extract -> reprocess
// gating -> proposals for one source and returns the witness group to
// consolidate.
func (p *Pipeline) processIngestion(ctx context.Context, job *model.IngestionJob) (string, error) {
	source, err := p.store.GetSource(ctx, job.SourceID)
	if err != nil {
		return "", eris.Wrap(err, "workflow: load source")
	}
	if source == nil {
		return "", eris.Errorf("workflow: source file missing: no record for %s", job.SourceID)
	}
	if _, err := os.Stat(source.Path); err != nil {
		return "", eris.Errorf("workflow: source file missing: %s", source.Path)
	}

	parsed, err := p.parser.Parse(ctx, source.Path, job.ParserStrategy)
	if err != nil {
		return "", err
	}
	job.ParserName = parsed.ParserName
	job.ParserStrategy = parsed.Strategy

	if err := p.cacheRawText(ctx, source.ID, parsed.Text); err != nil {
		return "", err
	}

	text, err := p.store.GetText(ctx, source.TextID)
	if err != nil {
		return "", eris.Wrap(err, "workflow: load text")
	}
	title := ""
	if text != nil {
		title = text.CanonicalTitle
	}

	normalized := dedupe.NormalizeText(parsed.Text, 0)
	assignment, err := p.witness.AssignGroup(ctx, source, title, normalized, workerActor)
	if err != nil {
		return "", err
	}
	group, err := p.store.GetWitnessGroup(ctx, assignment.GroupID)
	if err != nil {
		return "", eris.Wrap(err, "workflow: load witness group")
	}

	memberStrategy := parsed.Strategy
	if memberStrategy == "" {
		memberStrategy = parsed.ParserName
	}
	if group != nil {
		siblings, err := p.hasStrategySibling(ctx, group.ID, source.ID)
		if err != nil {
			return "", err
		}
		if siblings {
			if err := p.witness.FlagHeterogeneousParser(ctx, group, memberStrategy); err != nil {
				return "", err
			}
		}
	}
	role := model.RolePrimary
	if assignment.JoinedExisting {
		role = model.RoleSecondary
	}
	if err := p.witness.AddMember(ctx, assignment.GroupID, source.ID, role, memberStrategy, ""); err != nil {
		return "", err
	}

	passages, err := p.builder.Build(ctx, extract.Request{
		TextID:          source.TextID,
		SourceID:        source.ID,
		Content:         parsed.Text,
		Actor:           workerActor,
		Segmentation:    p.seg,
		IdempotencyRoot: job.ID,
		AIEnabled:       p.aiEnabled,
	})
	if err != nil {
		return "", err
	}

	for i := range passages {
		passage := &passages[i]
		if passage.RelevanceState == model.RelevanceFiltered {
			continue
		}
		switch {
		case passage.NeedsReprocess:
			reason := fmt.Sprintf("Auto reprocess queued after translation quality gate: untranslated_ratio=%.4f", passage.UntranslatedRatio)
			if _, err := p.EnqueueReprocess(ctx, passage.ID, model.TriggerAutoThreshold, "translation_incomplete", reason, workerActor); err != nil {
				return "", err
			}
		case passage.UsabilityScore < LowUsabilityThreshold:
			reason := fmt.Sprintf("Auto reprocess queued for low usability: score=%.4f", passage.UsabilityScore)
			if _, err := p.EnqueueReprocess(ctx, passage.ID, model.TriggerAutoThreshold, "low_usability_score", reason, workerActor); err != nil {
				return "", err
			}
		}
	}

	if p.aiEnabled {
		for i := range passages {
			passage := &passages[i]
			if passage.RelevanceState == model.RelevanceFiltered {
				continue
			}
			if _, err := p.proposals.ProposeForPassage(ctx, passage, workerActor, job.ID); err != nil {
				return "", err
			}
		}
	}

	return assignment.GroupID, nil
}

// cacheRawText stores the parsed text once per source.
func (p *Pipeline) cacheRawText(ctx context.Context, sourceID, text string) error {
	existing, err := p.store.GetArtifact(ctx, sourceID, rawTextArtifact)
	if err != nil {
		return eris.Wrap(err, "workflow: lookup raw text artifact")
	}
	if existing != nil {
		return nil
	}
	artifact := &model.Artifact{
		ID:           model.NewID("art"),
		SourceID:     sourceID,
		ArtifactType: rawTextArtifact,
		Text:         text,
		CreatedAt:    time.Now().UTC(),
	}
	return eris.Wrap(p.store.CreateArtifact(ctx, artifact), "workflow: cache raw text")
}

// hasStrategySibling reports whether another group member already carries a
// parser strategy, which is when heterogeneity is even detectable.
func (p *Pipeline) hasStrategySibling(ctx context.Context, groupID, sourceID string) (bool, error) {
	members, err := p.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return false, eris.Wrap(err, "workflow: list group members")
	}
	for _, m := range members {
		if m.SourceID != sourceID && m.ParserStrategy != "" {
			return true, nil
		}
	}
	return false, nil
}

// recordAttempt appends the attempt history row; failures are logged only.
func (p *Pipeline) recordAttempt(ctx context.Context, jobID string, attemptNo int, status model.JobStatus, detail string) {
	attempt := &model.JobAttempt{
		ID:          model.NewID("att"),
		JobID:       jobID,
		AttemptNo:   attemptNo,
		Status:      status,
		ErrorDetail: detail,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.CreateJobAttempt(ctx, attempt); err != nil {
		zap.L().Error("workflow: attempt record failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
}
