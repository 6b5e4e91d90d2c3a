package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/translate"
	"github.com/three-lanterns/curator/internal/witness"
)

const (
	// crossrefSimilarityThreshold accepts a sibling PDF chunk as a variant.
	crossrefSimilarityThreshold = 0.12
	// siblingChunkLimit bounds how many chunks of one sibling are scanned.
	siblingChunkLimit = 120
	// referenceSnippetLen is how much passage text seeds the external search.
	referenceSnippetLen = 360
	// referenceCandidates caps the external search result list.
	referenceCandidates = 5

	uncertainTranslationFlag = "uncertain_translation"
)

// EnqueueReprocess creates a pending reprocess job for a passage. A passage
// with an active (pending or running) job gets that job back instead of a
// second one, and a key replay returns the existing job.
func (p *Pipeline) EnqueueReprocess(ctx context.Context, passageID string, mode model.TriggerMode, reasonCode, note, actor string) (*model.ReprocessJob, error) {
	passage, err := p.store.GetPassage(ctx, passageID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: load passage for reprocess")
	}
	if passage == nil {
		return nil, model.Invalid("unknown passage: %s", passageID)
	}

	if active, err := p.store.ActiveReprocessJobForPassage(ctx, passageID); err != nil {
		return nil, eris.Wrap(err, "workflow: check active reprocess job")
	} else if active != nil {
		return active, nil
	}

	key := fmt.Sprintf("reproc:%s:%d", passageID, passage.ReprocessCount)
	if existing, err := p.store.ReprocessJobByKey(ctx, key); err != nil {
		return nil, eris.Wrap(err, "workflow: lookup reprocess job by key")
	} else if existing != nil {
		return existing, nil
	}

	reason := reasonCode
	if note != "" {
		reason = reasonCode + ": " + note
	}
	now := time.Now().UTC()
	job := &model.ReprocessJob{
		ID:             model.NewID("rep"),
		PassageID:      passageID,
		IdempotencyKey: key,
		Status:         model.JobPending,
		TriggerMode:    mode,
		TriggerReason:  reason,
		MaxAttempts:    p.maxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.store.CreateReprocessJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "workflow: create reprocess job")
	}
	p.audit(ctx, actor, "job_created", "reprocess_job", job.ID, job.ID, "", string(model.JobPending), map[string]any{
		"passage_id":   passageID,
		"trigger_mode": string(mode),
		"reason":       reason,
	})
	return job, nil
}

// RunReprocessJob processes one claimed reprocess job. A translation that
// never clears the quality gate is not a job error: the job retries while
// attempts remain and dead-letters with the passage marked unresolved after.
func (p *Pipeline) RunReprocessJob(ctx context.Context, job *model.ReprocessJob) error {
	p.audit(ctx, workerActor, "job_claimed", "reprocess_job", job.ID, job.ID,
		string(model.JobPending), string(model.JobRunning), map[string]any{"attempt": job.AttemptCount})

	accepted, err := p.processReprocess(ctx, job)
	if err != nil {
		code := classifyReprocessError(err)
		job.Status = settleFailedJob(job.AttemptCount, job.MaxAttempts)
		job.LastError = truncateString(err.Error(), 2000)
		job.ErrorCode = code
		job.ErrorContext = errorContext(err)
		if updateErr := p.store.UpdateReprocessJob(ctx, job); updateErr != nil {
			return eris.Wrap(updateErr, "workflow: settle failed reprocess job")
		}
		p.recordAttempt(ctx, job.ID, job.AttemptCount, model.JobFailed, job.LastError)
		p.audit(ctx, workerActor, "job_failed", "reprocess_job", job.ID, job.ID,
			string(model.JobRunning), string(job.Status), map[string]any{
				"error_code": string(code),
				"attempt":    job.AttemptCount,
			})
		zap.L().Warn("workflow: reprocess job failed",
			zap.String("job_id", job.ID),
			zap.String("error_code", string(code)),
			zap.Error(err))
		return err
	}

	if accepted {
		job.Status = model.JobCompleted
		job.LastError = ""
		job.ErrorCode = ""
		job.ErrorContext = nil
		if err := p.store.UpdateReprocessJob(ctx, job); err != nil {
			return eris.Wrap(err, "workflow: mark reprocess job completed")
		}
		p.recordAttempt(ctx, job.ID, job.AttemptCount, model.JobCompleted, "")
		p.audit(ctx, workerActor, "job_completed", "reprocess_job", job.ID, job.ID,
			string(model.JobRunning), string(model.JobCompleted), nil)
		return nil
	}

	// Quality gate not met on any variant.
	job.Status = settleFailedJob(job.AttemptCount, job.MaxAttempts)
	job.LastError = "no source variant met the translation quality gate"
	job.ErrorCode = model.ErrTranslationBelowBar
	if job.Status == model.JobDeadLetter {
		job.ErrorCode = model.ErrUnresolved
	}
	if err := p.store.UpdateReprocessJob(ctx, job); err != nil {
		return eris.Wrap(err, "workflow: settle below-threshold reprocess job")
	}
	p.recordAttempt(ctx, job.ID, job.AttemptCount, model.JobFailed, job.LastError)
	p.audit(ctx, workerActor, "job_failed", "reprocess_job", job.ID, job.ID,
		string(model.JobRunning), string(job.Status), map[string]any{
			"error_code": string(job.ErrorCode),
			"attempt":    job.AttemptCount,
		})
	return nil
}

// variantInput is one escalation step fed to the translator.
type variantInput struct {
	variant          model.SourceVariant
	excerpt          string
	referenceContext string
	provenance       map[string]any
}

// processReprocess walks the variant escalation ladder and settles the
// passage. It returns whether any variant was accepted; an error means the
// cycle itself failed, not that quality stayed low.
func (p *Pipeline) processReprocess(ctx context.Context, job *model.ReprocessJob) (bool, error) {
	passage, err := p.store.GetPassage(ctx, job.PassageID)
	if err != nil {
		return false, eris.Wrap(err, "workflow: load passage")
	}
	if passage == nil {
		return false, eris.Errorf("workflow: passage not found: %s", job.PassageID)
	}

	revisions, err := p.store.ListTranslationRevisions(ctx, passage.ID)
	if err != nil {
		return false, eris.Wrap(err, "workflow: list revisions")
	}
	attemptNo := len(revisions)

	variants, err := p.buildVariants(ctx, passage)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	for _, v := range variants {
		switch v.variant {
		case model.VariantPDFCrossref:
			job.UsedPDFCrossref = true
		case model.VariantExternalReference:
			job.UsedExternalReference = true
		}

		result, err := p.translator.Translate(ctx, translate.Request{
			PassageID:        passage.ID,
			Excerpt:          v.excerpt,
			Actor:            workerActor,
			IdempotencyKey:   fmt.Sprintf("%s:%s", job.ID, v.variant),
			SourceVariant:    v.variant,
			ReferenceContext: v.referenceContext,
		})
		if err != nil {
			return false, eris.Wrapf(err, "workflow: translate variant %s", v.variant)
		}

		attemptNo++
		accepted := result.UntranslatedRatio <= translate.UntranslatedRatioThreshold
		decision := "rejected"
		if accepted {
			decision = "accepted"
		}
		revision := &model.TranslationRevision{
			ID:                model.NewID("rev"),
			PassageID:         passage.ID,
			AttemptNo:         attemptNo,
			SourceVariant:     v.variant,
			InputExcerpt:      truncateString(v.excerpt, 4000),
			TranslatedExcerpt: result.TranslatedText,
			DetectedLangCode:  result.DetectedLangCode,
			DetectedLangLabel: result.DetectedLangLabel,
			UntranslatedRatio: result.UntranslatedRatio,
			QualityDecision:   decision,
			Provenance:        v.provenance,
			TraceID:           result.TraceID,
			CreatedAt:         time.Now().UTC(),
		}
		if err := p.store.CreateTranslationRevision(ctx, revision); err != nil {
			return false, eris.Wrap(err, "workflow: write revision")
		}

		if accepted {
			passage.Normalized = result.TranslatedText
			passage.DetectedLangCode = result.DetectedLangCode
			passage.DetectedLangLabel = result.DetectedLangLabel
			passage.LangConfidence = result.LangConfidence
			passage.TranslationStatus = model.TranslationTranslated
			passage.UntranslatedRatio = result.UntranslatedRatio
			passage.NeedsReprocess = false
			passage.ReprocessCount++
			passage.LastReprocessAt = &now
			passage.TranslationSource = result.Provider
			passage.TranslationTraceID = result.TraceID
			if err := p.store.UpdatePassage(ctx, passage); err != nil {
				return false, eris.Wrap(err, "workflow: accept reprocessed passage")
			}
			p.audit(ctx, workerActor, "passage_reprocessed", "passage", passage.ID, job.ID,
				string(model.TranslationNeedsReprocess), string(model.TranslationTranslated), map[string]any{
					"variant":            string(v.variant),
					"untranslated_ratio": result.UntranslatedRatio,
				})
			return true, nil
		}
	}

	passage.ReprocessCount++
	passage.LastReprocessAt = &now
	if job.AttemptCount < job.MaxAttempts {
		passage.NeedsReprocess = true
		passage.TranslationStatus = model.TranslationNeedsReprocess
	} else {
		passage.NeedsReprocess = false
		passage.TranslationStatus = model.TranslationUnresolved
		if err := p.raiseUncertainTranslationFlag(ctx, passage, job); err != nil {
			return false, err
		}
		p.audit(ctx, workerActor, "passage_unresolved", "passage", passage.ID, job.ID,
			string(model.TranslationNeedsReprocess), string(model.TranslationUnresolved), nil)
	}
	if err := p.store.UpdatePassage(ctx, passage); err != nil {
		return false, eris.Wrap(err, "workflow: settle below-threshold passage")
	}
	return false, nil
}

// buildVariants assembles the escalation ladder: original parse, then the
// best-matching sibling PDF chunk, then the best external reference. Missing
// collaborator results shrink the ladder instead of failing it.
func (p *Pipeline) buildVariants(ctx context.Context, passage *model.Passage) ([]variantInput, error) {
	variants := []variantInput{{
		variant:    model.VariantOriginal,
		excerpt:    passage.Original,
		provenance: map[string]any{"variant": string(model.VariantOriginal)},
	}}

	if crossref, err := p.findPDFCrossref(ctx, passage); err != nil {
		return nil, err
	} else if crossref != nil {
		variants = append(variants, *crossref)
	}

	if ref := p.findExternalReference(ctx, passage); ref != nil {
		variants = append(variants, *ref)
	}
	return variants, nil
}

// findPDFCrossref scans sibling PDF witnesses of the same logical text for
// the chunk most similar to the passage, accepted at a deliberately low bar
// since any overlap can anchor a retranslation.
func (p *Pipeline) findPDFCrossref(ctx context.Context, passage *model.Passage) (*variantInput, error) {
	source, err := p.store.GetSource(ctx, passage.SourceID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: load passage source")
	}
	if source == nil {
		return nil, nil
	}
	siblings, err := p.store.SourcesByTextID(ctx, source.TextID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: list sibling sources")
	}

	passageTokens := witness.TokenSet(passage.Original)
	var bestChunk string
	var bestScore float64
	var bestSibling string
	for _, sibling := range siblings {
		if sibling.ID == source.ID || strings.ToLower(filepath.Ext(sibling.Path)) != ".pdf" {
			continue
		}
		parsed, err := p.parser.Parse(ctx, sibling.Path, "")
		if err != nil {
			zap.L().Debug("workflow: skipping unparseable sibling pdf",
				zap.String("source_id", sibling.ID), zap.Error(err))
			continue
		}
		chunks := strings.Split(parsed.Text, "\n\n")
		if len(chunks) > siblingChunkLimit {
			chunks = chunks[:siblingChunkLimit]
		}
		for _, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			score := witness.Jaccard(passageTokens, witness.TokenSet(chunk))
			if score > bestScore {
				bestScore = score
				bestChunk = chunk
				bestSibling = sibling.ID
			}
		}
	}
	if bestScore < crossrefSimilarityThreshold {
		return nil, nil
	}
	return &variantInput{
		variant: model.VariantPDFCrossref,
		excerpt: bestChunk,
		provenance: map[string]any{
			"variant":           string(model.VariantPDFCrossref),
			"sibling_source_id": bestSibling,
			"similarity":        bestScore,
		},
	}, nil
}

// findExternalReference asks the free-reference collaborator for context.
// Lookup failures degrade to no candidate.
func (p *Pipeline) findExternalReference(ctx context.Context, passage *model.Passage) *variantInput {
	title := ""
	if text, err := p.store.GetText(ctx, passage.TextID); err != nil {
		zap.L().Warn("workflow: text lookup for reference search failed",
			zap.String("passage_id", passage.ID), zap.Error(err))
	} else if text != nil {
		title = text.CanonicalTitle
	}

	refCtx, cancel := context.WithTimeout(ctx, referenceTimeout)
	defer cancel()
	candidates := p.refs.Search(refCtx, title, truncateString(passage.Original, referenceSnippetLen), referenceCandidates)
	if len(candidates) == 0 {
		return nil
	}
	top := candidates[0]
	return &variantInput{
		variant:          model.VariantExternalReference,
		excerpt:          passage.Original,
		referenceContext: strings.TrimSpace(top.Title + "\n" + top.Snippet),
		provenance: map[string]any{
			"variant":  string(model.VariantExternalReference),
			"provider": top.Provider,
			"locator":  top.Locator,
			"score":    top.Score,
		},
	}
}

// raiseUncertainTranslationFlag creates or refreshes the reviewer-facing
// flag for a passage that exhausted its reprocess attempts.
func (p *Pipeline) raiseUncertainTranslationFlag(ctx context.Context, passage *model.Passage, job *model.ReprocessJob) error {
	rationale := fmt.Sprintf("Translation unresolved after %d reprocess attempts (last ratio %.4f).",
		job.AttemptCount, passage.UntranslatedRatio)

	existing, err := p.store.FlagByPassageAndType(ctx, passage.ID, uncertainTranslationFlag)
	if err != nil {
		return eris.Wrap(err, "workflow: lookup uncertain flag")
	}
	if existing != nil {
		existing.Severity = "high"
		existing.Rationale = rationale
		return eris.Wrap(p.store.UpdateFlag(ctx, existing), "workflow: refresh uncertain flag")
	}

	now := time.Now().UTC()
	flag := &model.FlagRecord{
		ID:            model.NewID("flg"),
		PassageID:     passage.ID,
		FlagType:      uncertainTranslationFlag,
		Severity:      "high",
		Rationale:     rationale,
		EvidenceIDs:   []string{passage.ID},
		ReviewerState: model.ReviewerProposed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return eris.Wrap(p.store.CreateFlag(ctx, flag), "workflow: raise uncertain flag")
}
