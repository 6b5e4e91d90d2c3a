package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/extract"
	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/parser"
	"github.com/three-lanterns/curator/internal/proposal"
	"github.com/three-lanterns/curator/internal/quality"
	"github.com/three-lanterns/curator/internal/store"
	"github.com/three-lanterns/curator/internal/translate"
	"github.com/three-lanterns/curator/internal/witness"
	"github.com/three-lanterns/curator/pkg/freeref"
)

// ritualText scores well on usability and relevance and reads as modern
// English to the offline translator.
var ritualText = strings.Repeat("invocation offering dawn ritual text ", 8)

// fakeSearcher returns a fixed candidate list.
type fakeSearcher struct {
	candidates []freeref.Candidate
}

func (f fakeSearcher) Search(context.Context, string, string, int) []freeref.Candidate {
	return f.candidates
}

// scriptedTranslator returns a fixed untranslated ratio per source variant,
// so tests can steer the quality gate without touching real providers.
type scriptedTranslator struct {
	ratios map[model.SourceVariant]float64
	calls  []model.SourceVariant
}

func (s *scriptedTranslator) Translate(_ context.Context, req translate.Request) (translate.Result, error) {
	s.calls = append(s.calls, req.SourceVariant)
	ratio := s.ratios[req.SourceVariant]
	status := model.TranslationTranslated
	needsWork := false
	if ratio > translate.UntranslatedRatioThreshold {
		status = model.TranslationNeedsReprocess
		needsWork = true
	}
	return translate.Result{
		TranslatedText:    "modernized: " + req.Excerpt,
		DetectedLangCode:  "eng",
		DetectedLangLabel: "English",
		LangConfidence:    0.9,
		UntranslatedRatio: ratio,
		Status:            status,
		NeedsReprocess:    needsWork,
		Provider:          "scripted",
		TraceID:           model.NewID("prtr"),
	}, nil
}

type harness struct {
	pipeline *Pipeline
	store    store.Store
	dir      string
}

// newHarness wires a pipeline over a throwaway SQLite store. A nil
// translator falls back to the deterministic offline one.
func newHarness(t *testing.T, translator translate.Translator, refs freeref.Searcher, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "curator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	p := parser.New("")
	if translator == nil {
		translator = translate.NewMockTranslator(st)
	}
	if refs == nil {
		refs = fakeSearcher{}
	}
	lexicon := quality.BuildOntologyLexicon(model.OntologyDimensions, model.TraditionVocabulary)
	scorer := quality.NewScorer(quality.DefaultConfig(lexicon), lexicon)
	engine := witness.NewEngine(st, func(ctx context.Context, path string) (string, error) {
		parsed, err := p.Parse(ctx, path, "")
		if err != nil {
			return "", err
		}
		return parsed.Text, nil
	})
	builder := extract.NewBuilder(st, scorer, translator)
	proposals := proposal.NewEngine(st, proposal.NewHeuristicGenerator())

	return &harness{
		pipeline: NewPipeline(st, p, engine, builder, translator, proposals, refs, opts),
		store:    st,
		dir:      dir,
	}
}

func (h *harness) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) register(t *testing.T, name, content string) *Registration {
	t.Helper()
	path := h.writeFile(t, name, content)
	reg, err := h.pipeline.Register(context.Background(), RegisterInput{
		Path:       path,
		Region:     "europe_mediterranean",
		Traditions: []string{"greek_mystery"},
		Actor:      "tester",
	})
	require.NoError(t, err)
	require.NotNil(t, reg)
	return reg
}

// seedPassage persists a text, source, and passage directly, bypassing
// ingestion, for reprocess-focused tests.
func (h *harness) seedPassage(t *testing.T, original string, needsReprocess bool) *model.Passage {
	t.Helper()
	ctx := context.Background()

	text := &model.Text{
		ID:             model.NewID("txt"),
		CanonicalTitle: "Seeded Rite",
		Region:         "europe_mediterranean",
		TraditionTags:  []string{"greek_mystery"},
		SourceCount:    1,
		CreatedBy:      "tester",
	}
	require.NoError(t, h.store.CreateText(ctx, text))

	source := &model.SourceMaterial{
		ID:                 model.NewID("src"),
		TextID:             text.ID,
		Path:               filepath.Join(h.dir, "seeded.txt"),
		RawSHA256:          model.NewID("raw"),
		NormalizedSHA256:   model.NewID("norm"),
		DigitizationStatus: digitizationRegistered,
		CreatedBy:          "tester",
	}
	require.NoError(t, h.store.CreateSource(ctx, source))

	status := model.TranslationTranslated
	if needsReprocess {
		status = model.TranslationNeedsReprocess
	}
	passage := &model.Passage{
		ID:                 model.NewID("psg"),
		TextID:             text.ID,
		SourceID:           source.ID,
		SpanLocator:        "segment_1",
		Original:           original,
		Normalized:         original,
		NormalizedLanguage: model.CanonicalLanguage,
		ExtractionConf:     0.74,
		DetectedLangCode:   "und",
		DetectedLangLabel:  "Undetermined",
		LangConfidence:     0.5,
		TranslationStatus:  status,
		UntranslatedRatio:  0.8,
		NeedsReprocess:     needsReprocess,
		TranslationSource:  "mock_translator",
		UsabilityScore:     0.7,
		RelevanceScore:     0.6,
		RelevanceState:     model.RelevanceAccepted,
		QualityVersion:     "q1",
		ReviewerState:      model.ReviewerProposed,
		PublishState:       model.PublishBlocked,
	}
	require.NoError(t, h.store.CreatePassage(ctx, passage))
	return passage
}
