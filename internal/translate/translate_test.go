package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/pkg/llm"
)

type traceRecorder struct {
	traces []*model.ProposalTrace
}

func (r *traceRecorder) WriteProposalTrace(_ context.Context, trace *model.ProposalTrace) error {
	r.traces = append(r.traces, trace)
	return nil
}

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ string) (llm.Completion, error) {
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	var text string
	if i < len(c.responses) {
		text = c.responses[i]
	}
	return llm.Completion{Text: text, Model: "test-model"}, err
}

func TestMockTranslateMiddleEnglish(t *testing.T) {
	rec := &traceRecorder{}
	tr := NewMockTranslator(rec)

	got, err := tr.Translate(context.Background(), Request{
		PassageID:      "psg_1",
		Excerpt:        "Whan thou hath poured the offering, thy circle doth hold.",
		Actor:          "tester",
		IdempotencyKey: "translate:psg_1",
		SourceVariant:  model.VariantOriginal,
	})
	require.NoError(t, err)

	assert.Equal(t, "enm", got.DetectedLangCode)
	assert.Equal(t, "Middle English", got.DetectedLangLabel)
	assert.InDelta(t, 0.76, got.LangConfidence, 1e-9)
	assert.Contains(t, got.TranslatedText, "you has poured")
	assert.Contains(t, got.TranslatedText, "your circle does hold")
	assert.Equal(t, "mock_translation", got.Provider)

	require.Len(t, rec.traces, 1)
	assert.Equal(t, "psg_1", rec.traces[0].ObjectID)
	assert.Equal(t, "translation", rec.traces[0].ProposalType)
	assert.Empty(t, rec.traces[0].FailureReason)
	assert.Equal(t, got.TraceID, rec.traces[0].ID)
}

func TestMockTranslateOldEnglishMarkers(t *testing.T) {
	tr := NewMockTranslator(&traceRecorder{})

	got, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_2",
		Excerpt:       "Hwæt, þu scealt gehealdan þone hring æt dægred.",
		SourceVariant: model.VariantOriginal,
	})
	require.NoError(t, err)
	assert.Equal(t, "ang", got.DetectedLangCode)
	assert.Equal(t, "Old English", got.DetectedLangLabel)
	assert.InDelta(t, 0.9, got.LangConfidence, 1e-9)
}

func TestMockTranslateModernEnglish(t *testing.T) {
	tr := NewMockTranslator(&traceRecorder{})

	got, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_3",
		Excerpt:       "The ritual offering at dawn requires water and fire upon the altar within the circle.",
		SourceVariant: model.VariantOriginal,
	})
	require.NoError(t, err)
	assert.Equal(t, "eng", got.DetectedLangCode)
	assert.Equal(t, "English", got.DetectedLangLabel)
	assert.Zero(t, got.UntranslatedRatio)
	assert.Equal(t, model.TranslationTranslated, got.Status)
	assert.False(t, got.NeedsReprocess)
}

func TestMockTranslateAsciiGibberishIsUndetermined(t *testing.T) {
	tr := NewMockTranslator(&traceRecorder{})

	got, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_4",
		Excerpt:       "Lorem ipsum dolor sit amet consectetur adipiscing elit vestibulum ornare metus nec.",
		SourceVariant: model.VariantOriginal,
	})
	require.NoError(t, err)
	assert.Equal(t, "und", got.DetectedLangCode)
	assert.Equal(t, "Undetermined", got.DetectedLangLabel)
	assert.InDelta(t, 0.58, got.LangConfidence, 1e-9)
}

func TestUntranslatedRatio(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		translated string
		lang       string
		want       float64
	}{
		{"english source is trivially complete", "whatever text here", "whatever text here", "eng", 0.0},
		{"empty translation is fully untranslated", "aliquid verba hic manent", "", "und", 1.0},
		{"verbatim survival counts", "aliquid verba manent quattuor", "aliquid verba manent quattuor", "und", 1.0},
		{"full replacement", "aliquid verba manent quattuor", "some words remain four", "und", 0.0},
		{"half survival", "aliquid verba manent quattuor", "aliquid verba remain four", "und", 0.5},
		{"stopwords and short tokens ignored", "the and ab 12", "completely new text", "und", 0.0},
		{"protected tokens ignored", "ritual oracle sigil unchanged", "ritual oracle sigil altered", "und", 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, UntranslatedRatio(tc.source, tc.translated, tc.lang), 1e-9)
		})
	}
}

func TestStatusForRatio(t *testing.T) {
	assert.Equal(t, model.TranslationTranslated, StatusForRatio(0.20))
	assert.Equal(t, model.TranslationNeedsReprocess, StatusForRatio(0.2001))
}

func TestLanguageLabel(t *testing.T) {
	assert.Equal(t, "Old English", LanguageLabel("ang"))
	assert.Equal(t, "Middle English", LanguageLabel("ENM"))
	assert.Equal(t, "Undetermined", LanguageLabel(""))
	assert.Equal(t, "French", LanguageLabel("fr"))
}

func TestLLMTranslatorParsesFirstAttempt(t *testing.T) {
	rec := &traceRecorder{}
	client := &scriptedClient{responses: []string{
		`{"modern_english_text":"Pour the offering at dawn.","detected_language_code":"enm","detected_language_label":"Middle English","language_detection_confidence":0.8}`,
	}}
	tr := NewLLMTranslator(client, rec, "test-model", "v1")

	got, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_5",
		Excerpt:       "Whan the offring is ypoured at morwe.",
		SourceVariant: model.VariantOriginal,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "Pour the offering at dawn.", got.TranslatedText)
	assert.Equal(t, "llm", got.Provider)
	require.Len(t, rec.traces, 1)
	assert.Zero(t, rec.traces[0].RetryCount)
	assert.Equal(t, "v1:translation_v1", rec.traces[0].PromptVersion)
}

func TestLLMTranslatorRepairsOnce(t *testing.T) {
	rec := &traceRecorder{}
	client := &scriptedClient{responses: []string{
		"not json at all",
		`{"modern_english_text":"Guard the boundary at night.","detected_language_code":"ang","detected_language_label":"Old English","language_detection_confidence":0.7}`,
	}}
	tr := NewLLMTranslator(client, rec, "test-model", "v1")

	got, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_6",
		Excerpt:       "Heald þone hring on niht.",
		SourceVariant: model.VariantOriginal,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "ang", got.DetectedLangCode)
	require.Len(t, rec.traces, 1)
	assert.Equal(t, 1, rec.traces[0].RetryCount)
	assert.Empty(t, rec.traces[0].FailureReason)
}

func TestLLMTranslatorHardFailsAfterRepair(t *testing.T) {
	rec := &traceRecorder{}
	client := &scriptedClient{responses: []string{"garbage", "still garbage"}}
	tr := NewLLMTranslator(client, rec, "test-model", "v1")

	_, err := tr.Translate(context.Background(), Request{
		PassageID:     "psg_7",
		Excerpt:       "Heald þone hring.",
		SourceVariant: model.VariantOriginal,
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, 2, client.calls)

	require.Len(t, rec.traces, 1)
	assert.NotEmpty(t, rec.traces[0].FailureReason)
	assert.Contains(t, rec.traces[0].FailureReason, "translation_output_validation_failed")
	assert.Equal(t, 1, rec.traces[0].RetryCount)
}

func TestPayloadValidation(t *testing.T) {
	_, err := parsePayload(`{"modern_english_text":"","detected_language_code":"eng","detected_language_label":"English","language_detection_confidence":0.5}`)
	assert.Error(t, err)

	_, err = parsePayload(`{"modern_english_text":"ok text","detected_language_code":"e","detected_language_label":"English","language_detection_confidence":0.5}`)
	assert.Error(t, err)

	_, err = parsePayload(`{"modern_english_text":"ok text","detected_language_code":"eng","detected_language_label":"English","language_detection_confidence":1.5}`)
	assert.Error(t, err)
}
