// Package extract segments parsed source text into passages and runs each
// one through translation and quality scoring.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/quality"
	"github.com/three-lanterns/curator/internal/translate"
)

const (
	// DefaultMinPassageLength filters out fragments too short to review.
	DefaultMinPassageLength = 180
	// fallbackMaxChars bounds the whole-document fallback passage.
	fallbackMaxChars = 2000

	// skippedProvider marks passages whose low relevance skipped translation.
	skippedProvider = "skipped_low_relevance"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Segmentation controls passage splitting.
type Segmentation struct {
	MinPassageLength int
	MaxPassages      int
}

// PassageWriter persists newly built passages.
type PassageWriter interface {
	CreatePassage(ctx context.Context, passage *model.Passage) error
}

// Builder turns raw source text into persisted, scored passages.
type Builder struct {
	store      PassageWriter
	scorer     *quality.Scorer
	translator translate.Translator
}

// NewBuilder wires the segmentation pipeline.
func NewBuilder(store PassageWriter, scorer *quality.Scorer, translator translate.Translator) *Builder {
	return &Builder{store: store, scorer: scorer, translator: translator}
}

// SplitPassages breaks text on blank lines, compacts whitespace, and keeps
// chunks at least minLength runes long. When nothing qualifies, the whole
// compacted text (capped) becomes a single fallback passage.
func SplitPassages(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = DefaultMinPassageLength
	}
	var passages []string
	for _, chunk := range paragraphBreak.Split(text, -1) {
		compact := translate.CompactWhitespace(chunk)
		if len([]rune(compact)) >= minLength {
			passages = append(passages, compact)
		}
	}
	if len(passages) == 0 {
		fallback := translate.CompactWhitespace(text)
		if fallback != "" {
			runes := []rune(fallback)
			if len(runes) > fallbackMaxChars {
				fallback = string(runes[:fallbackMaxChars])
			}
			passages = append(passages, fallback)
		}
	}
	return passages
}

// Request carries one source document through segmentation.
type Request struct {
	TextID          string
	SourceID        string
	Content         string
	Actor           string
	Segmentation    Segmentation
	IdempotencyRoot string
	// AIEnabled gates translation; when false every passage is persisted
	// with the untranslated original and the skipped provider marker.
	AIEnabled bool
}

// Build segments, translates, scores, and persists passages for one source.
// Filtered passages skip translation entirely but are still persisted.
func (b *Builder) Build(ctx context.Context, req Request) ([]model.Passage, error) {
	passages := SplitPassages(req.Content, req.Segmentation.MinPassageLength)
	if max := req.Segmentation.MaxPassages; max > 0 && len(passages) > max {
		passages = passages[:max]
	}

	created := make([]model.Passage, 0, len(passages))
	for i, excerpt := range passages {
		index := i + 1
		passageID := model.NewID("psg")
		assessment := b.scorer.Evaluate(excerpt)

		var (
			normalized string
			langCode   string
			langLabel  string
			langConf   float64
			status     model.TranslationStatus
			ratio      float64
			needsWork  bool
			provider   string
			traceID    string
		)
		if assessment.RelevanceState == model.RelevanceFiltered || !req.AIEnabled {
			langCode = translate.GuessLanguageCode(excerpt)
			langLabel = translate.LanguageLabel(langCode)
			normalized = translate.CompactWhitespace(excerpt)
			status = model.TranslationTranslated
			provider = skippedProvider
			langConf = 0.52
		} else {
			translation, err := b.translator.Translate(ctx, translate.Request{
				PassageID:      passageID,
				Excerpt:        excerpt,
				Actor:          req.Actor,
				IdempotencyKey: fmt.Sprintf("%s:%s:%d", req.IdempotencyRoot, passageID, index),
				SourceVariant:  model.VariantOriginal,
			})
			if err != nil {
				return created, eris.Wrapf(err, "extract: translate segment %d", index)
			}
			normalized = translation.TranslatedText
			langCode = translation.DetectedLangCode
			langLabel = translation.DetectedLangLabel
			langConf = translation.LangConfidence
			status = translation.Status
			ratio = translation.UntranslatedRatio
			needsWork = translation.NeedsReprocess
			provider = translation.Provider
			traceID = translation.TraceID
		}

		if normalized == "" {
			return created, model.Invalid("normalized passage cannot be empty")
		}
		extractionConf := 0.74
		if langCode == "eng" {
			extractionConf = 0.9
		}

		now := time.Now().UTC()
		passage := model.Passage{
			ID:                 passageID,
			TextID:             req.TextID,
			SourceID:           req.SourceID,
			SpanLocator:        fmt.Sprintf("segment_%d", index),
			Original:           excerpt,
			Normalized:         normalized,
			NormalizedLanguage: model.CanonicalLanguage,
			ExtractionConf:     extractionConf,
			DetectedLangCode:   langCode,
			DetectedLangLabel:  langLabel,
			LangConfidence:     langConf,
			TranslationStatus:  status,
			UntranslatedRatio:  ratio,
			NeedsReprocess:     needsWork,
			TranslationSource:  provider,
			TranslationTraceID: traceID,
			UsabilityScore:     assessment.UsabilityScore,
			RelevanceScore:     assessment.RelevanceScore,
			RelevanceState:     assessment.RelevanceState,
			QualityNotes:       assessment.Notes(),
			QualityVersion:     assessment.Version,
			ReviewerState:      model.ReviewerProposed,
			PublishState:       model.PublishBlocked,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := b.store.CreatePassage(ctx, &passage); err != nil {
			return created, eris.Wrapf(err, "extract: persist segment %d", index)
		}
		created = append(created, passage)
	}

	zap.L().Info("extract: passages built",
		zap.String("source_id", req.SourceID),
		zap.Int("passages", len(created)))
	return created, nil
}
