// Package translate renders passage excerpts into modern English and gates
// translation quality via the untranslated-token ratio. Providers are either
// a deterministic offline translator or an LLM with a single repair retry.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/three-lanterns/curator/internal/model"
)

// UntranslatedRatioThreshold is the maximum acceptable share of source tokens
// surviving verbatim in the translation before a passage needs reprocessing.
const UntranslatedRatioThreshold = 0.20

var (
	tokenPattern = regexp.MustCompile(`[A-Za-z0-9'-]+`)

	protectedTokens = map[string]bool{
		"ritual": true, "psalm": true, "oracle": true, "amulet": true,
		"sigil": true, "incantation": true, "liturgy": true,
	}
	stopTokens = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "that": true,
		"this": true, "from": true, "into": true, "upon": true, "unto": true,
		"are": true, "was": true, "were": true, "shall": true, "should": true,
		"would": true, "could": true,
	}

	languageLabels = map[string]string{
		"eng": "English",
		"ang": "Old English",
		"enm": "Middle English",
		"und": "Undetermined",
	}
)

// Request identifies one excerpt to translate and the provenance to record.
type Request struct {
	PassageID        string
	Excerpt          string
	Actor            string
	IdempotencyKey   string
	SourceVariant    model.SourceVariant
	ReferenceContext string
}

// Result is the graded translation outcome.
type Result struct {
	TranslatedText    string
	DetectedLangCode  string
	DetectedLangLabel string
	LangConfidence    float64
	UntranslatedRatio float64
	Status            model.TranslationStatus
	NeedsReprocess    bool
	Provider          string
	TraceID           string
}

// Translator produces a graded translation and persists its trace.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TraceWriter persists immutable invocation traces.
type TraceWriter interface {
	WriteProposalTrace(ctx context.Context, trace *model.ProposalTrace) error
}

// payload is the JSON schema both providers must produce.
type payload struct {
	ModernEnglishText string  `json:"modern_english_text"`
	DetectedLangCode  string  `json:"detected_language_code"`
	DetectedLangLabel string  `json:"detected_language_label"`
	LangConfidence    float64 `json:"language_detection_confidence"`
}

func (p payload) validate() error {
	if strings.TrimSpace(p.ModernEnglishText) == "" {
		return eris.New("modern_english_text must be non-empty")
	}
	if n := len(p.DetectedLangCode); n < 2 || n > 12 {
		return eris.New("detected_language_code must be 2-12 characters")
	}
	if n := len(p.DetectedLangLabel); n < 2 || n > 120 {
		return eris.New("detected_language_label must be 2-120 characters")
	}
	if p.LangConfidence < 0.0 || p.LangConfidence > 1.0 {
		return eris.New("language_detection_confidence must be within [0,1]")
	}
	return nil
}

// LanguageLabel resolves an ISO 639-3 code to a human label, falling back to
// the display tables for codes outside the project's core set.
func LanguageLabel(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if label, ok := languageLabels[code]; ok {
		return label
	}
	if tag, err := language.Parse(code); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return "Undetermined"
}

// CompactWhitespace collapses runs of whitespace to single spaces.
func CompactWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// GuessLanguageCode makes a coarse ASCII-ratio guess when no marker matched.
func GuessLanguageCode(text string) string {
	if len(text) == 0 {
		return "eng"
	}
	ascii := 0
	for _, b := range []byte(text) {
		if b < 128 {
			ascii++
		}
	}
	if float64(ascii)/float64(len(text)) > 0.95 {
		return "eng"
	}
	return "und"
}

// UntranslatedRatio measures how many meaningful source tokens survive
// verbatim in the translation. English sources trivially score 0; an empty
// translation scores 1.
func UntranslatedRatio(sourceText, translatedText, detectedLangCode string) float64 {
	translated := CompactWhitespace(translatedText)
	if translated == "" {
		return 1.0
	}
	code := strings.ToLower(detectedLangCode)
	if code == "" {
		code = "und"
	}
	if code == "eng" {
		return 0.0
	}

	var sourceTokens []string
	for _, tok := range tokenize(sourceText) {
		if ignorableRatioToken(tok) {
			continue
		}
		sourceTokens = append(sourceTokens, tok)
	}
	if len(sourceTokens) == 0 {
		return 0.0
	}
	translatedSet := make(map[string]bool)
	for _, tok := range tokenize(translated) {
		translatedSet[tok] = true
	}

	untranslated := 0
	for _, tok := range sourceTokens {
		if translatedSet[tok] {
			untranslated++
		}
	}
	ratio := float64(untranslated) / float64(len(sourceTokens))
	return round4(clamp01(ratio))
}

// StatusForRatio applies the quality gate to a computed ratio.
func StatusForRatio(ratio float64) model.TranslationStatus {
	if ratio > UntranslatedRatioThreshold {
		return model.TranslationNeedsReprocess
	}
	return model.TranslationTranslated
}

func buildPrompt(excerpt string, variant model.SourceVariant, referenceContext string) string {
	reference := strings.TrimSpace(referenceContext)
	if reference == "" {
		reference = "None"
	}
	var b strings.Builder
	b.WriteString("Translate the source passage into clear modern English.\n")
	b.WriteString("Return strictly JSON with keys:\n")
	b.WriteString("- modern_english_text\n")
	b.WriteString("- detected_language_code\n")
	b.WriteString("- detected_language_label\n")
	b.WriteString("- language_detection_confidence\n")
	b.WriteString("Do not include markdown or extra keys.\n")
	b.WriteString("Source variant: " + string(variant) + "\n")
	b.WriteString("External references: " + reference + "\n")
	b.WriteString("Source passage:\n")
	b.WriteString(truncateRunes(excerpt, 6000) + "\n")
	return b.String()
}

func buildRepairPrompt(originalPrompt, rawResponse, errText string) string {
	var b strings.Builder
	b.WriteString("Repair this output into strictly valid JSON for the required translation schema.\n")
	b.WriteString("Return JSON only.\n")
	b.WriteString("Original prompt:\n" + originalPrompt + "\n")
	b.WriteString("Invalid response:\n" + rawResponse + "\n")
	b.WriteString("Validation error:\n" + errText + "\n")
	return b.String()
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		out = append(out, strings.ToLower(tok))
	}
	return out
}

func ignorableRatioToken(token string) bool {
	if len(token) < 3 {
		return true
	}
	if isDigits(token) {
		return true
	}
	return protectedTokens[token] || stopTokens[token]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
