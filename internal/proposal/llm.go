package proposal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/pkg/llm"
)

// LLMGenerator asks a model for the bundle. One repair attempt on invalid
// output; a second failure produces a failure trace and a validation error.
type LLMGenerator struct {
	client    llm.Client
	modelName string
}

// NewLLMGenerator wires the model-backed proposer.
func NewLLMGenerator(client llm.Client, modelName string) *LLMGenerator {
	return &LLMGenerator{client: client, modelName: modelName}
}

func (g *LLMGenerator) Generate(ctx context.Context, passage *model.Passage, peers []model.Passage, req GenerateRequest) (Bundle, string, *model.ProposalTrace, error) {
	prompt := buildPrompt(passage, peers)

	var attempts []map[string]any
	firstRaw, firstErr := g.complete(ctx, prompt, &attempts, 1)
	if firstErr == nil {
		if bundle, parseErr := parseBundle(firstRaw); parseErr == nil {
			trace := newBundleTrace(passage.ID, req, g.modelName, prompt, firstRaw,
				map[string]any{"mode": "llm", "attempts": attempts}, 0, "")
			return bundle, firstRaw, trace, nil
		} else {
			firstErr = parseErr
		}
	}

	zap.L().Warn("proposal: primary attempt invalid, issuing repair prompt",
		zap.String("passage_id", passage.ID), zap.Error(firstErr))

	repairPrompt := buildRepairPrompt(prompt, orEmpty(firstRaw), firstErr.Error())
	secondRaw, secondErr := g.complete(ctx, repairPrompt, &attempts, 2)
	if secondErr == nil {
		if bundle, parseErr := parseBundle(secondRaw); parseErr == nil {
			trace := newBundleTrace(passage.ID, req, g.modelName, prompt, secondRaw,
				map[string]any{"mode": "llm_repair", "attempts": attempts, "initial_error": firstErr.Error()}, 1, "")
			return bundle, secondRaw, trace, nil
		} else {
			secondErr = parseErr
		}
	}

	failure := fmt.Sprintf("bundle_validation_failed: attempt1=%v; attempt2=%v", firstErr, secondErr)
	rawResponse := secondRaw
	if rawResponse == "" {
		rawResponse = orEmpty(firstRaw)
	}
	trace := newBundleTrace(passage.ID, req, g.modelName, prompt, rawResponse, map[string]any{
		"mode":          "llm_failed",
		"attempts":      attempts,
		"initial_error": firstErr.Error(),
		"repair_error":  secondErr.Error(),
	}, 1, failure)
	return Bundle{}, rawResponse, trace, model.Invalid("proposal generation failed for %s", passage.ID)
}

func (g *LLMGenerator) complete(ctx context.Context, prompt string, attempts *[]map[string]any, attemptNo int) (string, error) {
	completion, err := g.client.Complete(ctx, prompt)
	*attempts = append(*attempts, map[string]any{
		"attempt":           attemptNo,
		"prompt_tokens":     completion.Usage.InputTokens,
		"completion_tokens": completion.Usage.OutputTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "proposal: completion request")
	}
	return completion.Text, nil
}

func parseBundle(raw string) (Bundle, error) {
	var bundle Bundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return Bundle{}, eris.Wrap(err, "proposal: decode bundle")
	}
	return bundle, nil
}

func orEmpty(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}
