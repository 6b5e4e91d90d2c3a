package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/quality"
	"github.com/three-lanterns/curator/internal/translate"
)

type passageRecorder struct {
	passages []model.Passage
}

func (r *passageRecorder) CreatePassage(_ context.Context, p *model.Passage) error {
	r.passages = append(r.passages, *p)
	return nil
}

type nopTraces struct{}

func (nopTraces) WriteProposalTrace(_ context.Context, _ *model.ProposalTrace) error { return nil }

func newScorer() *quality.Scorer {
	lexicon := quality.BuildOntologyLexicon(model.OntologyDimensions, model.TraditionVocabulary)
	return quality.NewScorer(quality.DefaultConfig(lexicon), lexicon)
}

func ritualParagraph(suffix string) string {
	return "At dawn the celebrant pours the libation within the circle of salt, " +
		"speaking the invocation over the offering bowl and asking protection " +
		"for the household before the ritual concludes with a blessing " + suffix + "."
}

func TestSplitPassages(t *testing.T) {
	long1 := ritualParagraph("of water")
	long2 := ritualParagraph("of fire")
	text := long1 + "\n\n\nshort\n\n" + long2
	got := SplitPassages(text, 180)
	require.Len(t, got, 2)
	assert.Equal(t, long1, got[0])
	assert.Equal(t, long2, got[1])
}

func TestSplitPassagesFallback(t *testing.T) {
	got := SplitPassages("too short\n\nalso short", 180)
	require.Len(t, got, 1)
	assert.Equal(t, "too short also short", got[0])

	assert.Empty(t, SplitPassages("   \n\n  ", 180))
}

func TestSplitPassagesFallbackCapped(t *testing.T) {
	huge := strings.Repeat("word ", 1000)
	got := SplitPassages(strings.ReplaceAll(huge, " ", "\n"), 10000)
	require.Len(t, got, 1)
	assert.LessOrEqual(t, len([]rune(got[0])), 2000)
}

func TestBuildPersistsScoredPassages(t *testing.T) {
	rec := &passageRecorder{}
	builder := NewBuilder(rec, newScorer(), translate.NewMockTranslator(nopTraces{}))

	content := ritualParagraph("of water") + "\n\n" + ritualParagraph("of fire")
	got, err := builder.Build(context.Background(), Request{
		TextID:          "txt_1",
		SourceID:        "src_1",
		Content:         content,
		Actor:           "tester",
		Segmentation:    Segmentation{MinPassageLength: 180},
		IdempotencyRoot: "job_1:1:translation",
		AIEnabled:       true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, rec.passages, 2)

	first := rec.passages[0]
	assert.Equal(t, "segment_1", first.SpanLocator)
	assert.Equal(t, "segment_2", rec.passages[1].SpanLocator)
	assert.Equal(t, "txt_1", first.TextID)
	assert.Equal(t, model.ReviewerProposed, first.ReviewerState)
	assert.Equal(t, model.PublishBlocked, first.PublishState)
	assert.Equal(t, model.CanonicalLanguage, first.NormalizedLanguage)
	assert.Equal(t, "eng", first.DetectedLangCode)
	assert.InDelta(t, 0.9, first.ExtractionConf, 1e-9)
	assert.Equal(t, "mock_translation", first.TranslationSource)
	assert.NotEmpty(t, first.TranslationTraceID)
	assert.Greater(t, first.UsabilityScore, 0.5)
	assert.Equal(t, model.RelevanceAccepted, first.RelevanceState)
	assert.NotEmpty(t, first.QualityNotes)
}

func TestBuildFilteredPassageSkipsTranslation(t *testing.T) {
	rec := &passageRecorder{}
	builder := NewBuilder(rec, newScorer(), translate.NewMockTranslator(nopTraces{}))

	boilerplate := strings.TrimSpace(strings.Repeat(
		"click here to subscribe to our newsletter and manage your cookie preferences in account settings. ", 3))
	got, err := builder.Build(context.Background(), Request{
		TextID:       "txt_1",
		SourceID:     "src_1",
		Content:      boilerplate,
		Actor:        "tester",
		Segmentation: Segmentation{MinPassageLength: 100},
		AIEnabled:    true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := rec.passages[0]
	assert.Equal(t, model.RelevanceFiltered, p.RelevanceState)
	assert.Equal(t, "skipped_low_relevance", p.TranslationSource)
	assert.Equal(t, model.TranslationTranslated, p.TranslationStatus)
	assert.Zero(t, p.UntranslatedRatio)
	assert.False(t, p.NeedsReprocess)
	assert.Empty(t, p.TranslationTraceID)
	assert.InDelta(t, 0.52, p.LangConfidence, 1e-9)
}

func TestBuildHonorsMaxPassages(t *testing.T) {
	rec := &passageRecorder{}
	builder := NewBuilder(rec, newScorer(), translate.NewMockTranslator(nopTraces{}))

	content := ritualParagraph("one") + "\n\n" + ritualParagraph("two") + "\n\n" + ritualParagraph("three")
	got, err := builder.Build(context.Background(), Request{
		TextID:       "txt_1",
		SourceID:     "src_1",
		Content:      content,
		Actor:        "tester",
		Segmentation: Segmentation{MinPassageLength: 180, MaxPassages: 2},
		AIEnabled:    true,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
