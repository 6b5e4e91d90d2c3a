package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/pkg/llm"
)

// LLMTranslator asks a model for the translation payload. A malformed
// response gets exactly one repair attempt; a second failure writes a
// failure trace and surfaces a validation error.
type LLMTranslator struct {
	client        llm.Client
	traces        TraceWriter
	modelName     string
	promptVersion string
}

// NewLLMTranslator wires the model client, the trace sink, and the prompt
// version recorded on every trace.
func NewLLMTranslator(client llm.Client, tw TraceWriter, modelName, promptVersion string) *LLMTranslator {
	return &LLMTranslator{
		client:        client,
		traces:        tw,
		modelName:     modelName,
		promptVersion: promptVersion + ":translation_v1",
	}
}

func (t *LLMTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	prompt := buildPrompt(req.Excerpt, req.SourceVariant, req.ReferenceContext)

	var attempts []map[string]any
	firstRaw, firstUsage, firstErr := t.complete(ctx, prompt)
	attempts = append(attempts, usageEntry(1, firstUsage))
	if firstErr == nil {
		p, parseErr := parsePayload(firstRaw)
		if parseErr == nil {
			return finishTranslation(ctx, t.traces, req, p, firstRaw, finishParams{
				provider:      "llm",
				modelName:     t.modelName,
				promptVersion: t.promptVersion,
				usage:         map[string]any{"mode": "llm_translation", "attempts": attempts},
			})
		}
		firstErr = parseErr
	}

	zap.L().Warn("translate: primary attempt invalid, issuing repair prompt",
		zap.String("passage_id", req.PassageID),
		zap.Error(firstErr))

	repairPrompt := buildRepairPrompt(prompt, orEmptyJSON(firstRaw), firstErr.Error())
	secondRaw, secondUsage, secondErr := t.complete(ctx, repairPrompt)
	attempts = append(attempts, usageEntry(2, secondUsage))
	if secondErr == nil {
		p, parseErr := parsePayload(secondRaw)
		if parseErr == nil {
			return finishTranslation(ctx, t.traces, req, p, secondRaw, finishParams{
				provider:      "llm",
				modelName:     t.modelName,
				promptVersion: t.promptVersion,
				usage:         map[string]any{"mode": "llm_translation_repair", "attempts": attempts},
				retryCount:    1,
			})
		}
		secondErr = parseErr
	}

	failure := fmt.Sprintf("translation_output_validation_failed: attempt1=%v; attempt2=%v", firstErr, secondErr)
	rawResponse := secondRaw
	if rawResponse == "" {
		rawResponse = orEmptyJSON(firstRaw)
	}
	trace := &model.ProposalTrace{
		ID:             model.NewID("trc"),
		ObjectType:     "passage",
		ObjectID:       req.PassageID,
		ProposalType:   "translation",
		IdempotencyKey: req.IdempotencyKey,
		ModelName:      t.modelName,
		PromptVersion:  t.promptVersion,
		PromptHash:     hashText(prompt),
		ResponseHash:   hashText(rawResponse),
		Usage: map[string]any{
			"mode":          "llm_translation_failed",
			"attempts":      attempts,
			"initial_error": firstErr.Error(),
			"repair_error":  secondErr.Error(),
		},
		RetryCount:    1,
		FailureReason: failure,
		CreatedBy:     req.Actor,
	}
	if err := t.traces.WriteProposalTrace(ctx, trace); err != nil {
		return Result{}, eris.Wrap(err, "translate: write failure trace")
	}
	return Result{}, model.Invalid("translation failed for passage %s", req.PassageID)
}

func (t *LLMTranslator) complete(ctx context.Context, prompt string) (string, llm.Usage, error) {
	completion, err := t.client.Complete(ctx, prompt)
	if err != nil {
		return "", llm.Usage{}, eris.Wrap(err, "translate: completion request")
	}
	return completion.Text, completion.Usage, nil
}

func parsePayload(raw string) (payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return payload{}, eris.Wrap(err, "translate: decode payload")
	}
	if err := p.validate(); err != nil {
		return payload{}, err
	}
	return p, nil
}

func usageEntry(attempt int, u llm.Usage) map[string]any {
	return map[string]any{
		"attempt":           attempt,
		"prompt_tokens":     u.InputTokens,
		"completion_tokens": u.OutputTokens,
	}
}

func orEmptyJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}
