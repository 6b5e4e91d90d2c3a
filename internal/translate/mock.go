package translate

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/three-lanterns/curator/internal/model"
)

var archaicSubstitutions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bthou\b`), "you"},
	{regexp.MustCompile(`(?i)\bthee\b`), "you"},
	{regexp.MustCompile(`(?i)\bthy\b`), "your"},
	{regexp.MustCompile(`(?i)\bthine\b`), "yours"},
	{regexp.MustCompile(`(?i)\bhath\b`), "has"},
	{regexp.MustCompile(`(?i)\bdoth\b`), "does"},
	{regexp.MustCompile(`(?i)\bart\b`), "are"},
}

var archaicMarkers = []string{"þ", "ð", "æ", "hwæt", "thou", "hath", "doth", "yclept", "whan", "ye "}

var oldEnglishMarkers = []string{"þ", "ð", "hwæt", "iclept", "ge-"}

var englishHintTokens = func() map[string]bool {
	hints := map[string]bool{
		"ritual": true, "invocation": true, "offering": true, "circle": true,
		"boundary": true, "dawn": true, "night": true, "ceremony": true,
		"chant": true, "blessing": true, "protection": true, "healing": true,
		"passage": true, "modern": true, "language": true, "oracle": true,
		"sacred": true, "altar": true, "prayer": true, "spirit": true,
		"water": true, "fire": true, "temple": true, "household": true,
		"scribe": true, "oath": true, "vow": true, "offered": true,
	}
	for tok := range stopTokens {
		hints[tok] = true
	}
	return hints
}()

// MockTranslator is the deterministic offline provider. It normalizes
// archaic English variants and detects language by marker heuristics,
// suitable for development and pipeline tests without network access.
type MockTranslator struct {
	traces TraceWriter
}

// NewMockTranslator returns the offline provider writing traces through tw.
func NewMockTranslator(tw TraceWriter) *MockTranslator {
	return &MockTranslator{traces: tw}
}

func (m *MockTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	p := mockTranslate(req.Excerpt)
	raw, err := json.Marshal(p)
	if err != nil {
		return Result{}, eris.Wrap(err, "translate: encode mock payload")
	}
	return finishTranslation(ctx, m.traces, req, p, string(raw), finishParams{
		provider:  "mock_translation",
		modelName: "mock_translation",
		usage:     map[string]any{"mode": "mock_translation"},
	})
}

func mockTranslate(excerpt string) payload {
	normalized := CompactWhitespace(excerpt)
	code, label, confidence := detectEnglishVariant(normalized)
	modern := normalized
	if code == "ang" || code == "enm" {
		for _, sub := range archaicSubstitutions {
			modern = sub.pattern.ReplaceAllString(modern, sub.replacement)
		}
	}
	modern = CompactWhitespace(modern)
	if modern == "" {
		modern = normalized
	}
	return payload{
		ModernEnglishText: modern,
		DetectedLangCode:  code,
		DetectedLangLabel: label,
		LangConfidence:    confidence,
	}
}

func detectEnglishVariant(text string) (code, label string, confidence float64) {
	lowered := strings.ToLower(text)
	if containsAny(lowered, archaicMarkers) {
		if containsAny(lowered, oldEnglishMarkers) {
			return "ang", LanguageLabel("ang"), 0.9
		}
		return "enm", LanguageLabel("enm"), 0.76
	}

	guessed := GuessLanguageCode(text)
	if guessed == "eng" {
		var tokens []string
		for _, tok := range tokenize(text) {
			if len(tok) > 2 {
				tokens = append(tokens, tok)
			}
		}
		if len(tokens) > 0 {
			hits := 0
			for _, tok := range tokens {
				if englishHintTokens[tok] {
					hits++
				}
			}
			if float64(hits)/float64(len(tokens)) < 0.28 {
				return "und", LanguageLabel("und"), 0.58
			}
		}
		return "eng", LanguageLabel("eng"), 0.88
	}
	return guessed, LanguageLabel(guessed), 0.64
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

type finishParams struct {
	provider      string
	modelName     string
	promptVersion string
	usage         map[string]any
	retryCount    int
}

// finishTranslation grades a validated payload, writes the invocation trace,
// and assembles the result shared by both providers.
func finishTranslation(ctx context.Context, tw TraceWriter, req Request, p payload, rawResponse string, fp finishParams) (Result, error) {
	translated := CompactWhitespace(p.ModernEnglishText)
	if translated == "" {
		return Result{}, model.Invalid("translated excerpt cannot be empty")
	}
	code := strings.ToLower(strings.TrimSpace(p.DetectedLangCode))
	if code == "" {
		code = "und"
	}
	label := strings.TrimSpace(p.DetectedLangLabel)
	if label == "" {
		label = LanguageLabel(code)
	}
	ratio := UntranslatedRatio(req.Excerpt, translated, code)
	status := StatusForRatio(ratio)

	usage := make(map[string]any, len(fp.usage)+2)
	for k, v := range fp.usage {
		usage[k] = v
	}
	usage["source_variant"] = string(req.SourceVariant)
	usage["untranslated_ratio"] = ratio

	promptVersion := fp.promptVersion
	if promptVersion == "" {
		promptVersion = "translation_v1"
	}

	trace := &model.ProposalTrace{
		ID:             model.NewID("trc"),
		ObjectType:     "passage",
		ObjectID:       req.PassageID,
		ProposalType:   "translation",
		IdempotencyKey: req.IdempotencyKey,
		ModelName:      fp.modelName,
		PromptVersion:  promptVersion,
		PromptHash:     hashText(buildPrompt(req.Excerpt, req.SourceVariant, req.ReferenceContext)),
		ResponseHash:   hashText(rawResponse),
		Usage:          usage,
		RetryCount:     fp.retryCount,
		CreatedBy:      req.Actor,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tw.WriteProposalTrace(ctx, trace); err != nil {
		return Result{}, eris.Wrap(err, "translate: write trace")
	}

	return Result{
		TranslatedText:    translated,
		DetectedLangCode:  code,
		DetectedLangLabel: label,
		LangConfidence:    p.LangConfidence,
		UntranslatedRatio: ratio,
		Status:            status,
		NeedsReprocess:    status == model.TranslationNeedsReprocess,
		Provider:          fp.provider,
		TraceID:           trace.ID,
	}, nil
}
