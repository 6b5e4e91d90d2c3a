package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
)

func newTestScorer() *Scorer {
	lexicon := BuildOntologyLexicon(model.OntologyDimensions, model.TraditionVocabulary)
	return NewScorer(DefaultConfig(lexicon), lexicon)
}

func TestEvaluate_ScoresInRange(t *testing.T) {
	s := newTestScorer()
	inputs := []string{
		"",
		"invocation offering dawn ritual text",
		strings.Repeat("⟡⟡⟡ ", 200),
		"Table of contents. Chapter 1. Copyright notice. Navigation menu.",
		strings.Repeat("the priest poured a libation at the altar before dawn. ", 12),
	}
	for _, text := range inputs {
		a := s.Evaluate(text)
		assert.GreaterOrEqual(t, a.UsabilityScore, 0.0)
		assert.LessOrEqual(t, a.UsabilityScore, 1.0)
		assert.GreaterOrEqual(t, a.RelevanceScore, 0.0)
		assert.LessOrEqual(t, a.RelevanceScore, 1.0)
	}
}

func TestEvaluate_RitualText(t *testing.T) {
	s := newTestScorer()
	text := strings.Repeat("invocation offering dawn ritual text ", 8)
	a := s.Evaluate(text)
	assert.NotEqual(t, model.RelevanceFiltered, a.RelevanceState)
	assert.GreaterOrEqual(t, a.UsabilityScore, 0.6)
	assert.Greater(t, a.Relevance.PositiveHits, 0)
}

func TestEvaluate_SymbolGarbage(t *testing.T) {
	s := newTestScorer()
	a := s.Evaluate(strings.Repeat("⟁⟇⟊ ۞۞۞ ", 100))
	assert.Less(t, a.UsabilityScore, 0.4)
	assert.Greater(t, a.Usability.NoisySymbolRatio, 0.0)
	assert.Greater(t, a.Usability.NoisePenalty, 0.0)
}

func TestEvaluate_BoilerplateFiltered(t *testing.T) {
	s := newTestScorer()
	text := "Table of contents. Chapter 1. Index. Copyright. ISBN. Navigation menu. Download. Click. Publisher."
	a := s.Evaluate(text)
	assert.Equal(t, model.RelevanceFiltered, a.RelevanceState)
	assert.Greater(t, a.Relevance.NegativeHits, 0)
	assert.Greater(t, a.Relevance.NegativePhraseHits, 0)
}

func TestEvaluate_EmptyText(t *testing.T) {
	s := newTestScorer()
	a := s.Evaluate("")
	assert.Equal(t, 0.0, a.UsabilityScore)
}

func TestClassifyRelevance_Thresholds(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, model.RelevanceFiltered, s.ClassifyRelevance(0.0))
	assert.Equal(t, model.RelevanceFiltered, s.ClassifyRelevance(0.29))
	assert.Equal(t, model.RelevanceBorderline, s.ClassifyRelevance(0.30))
	assert.Equal(t, model.RelevanceBorderline, s.ClassifyRelevance(0.49))
	assert.Equal(t, model.RelevanceAccepted, s.ClassifyRelevance(0.50))
	assert.Equal(t, model.RelevanceAccepted, s.ClassifyRelevance(1.0))
}

func TestClassifyRelevance_Monotonic(t *testing.T) {
	s := newTestScorer()
	rank := map[model.RelevanceState]int{
		model.RelevanceFiltered:   0,
		model.RelevanceBorderline: 1,
		model.RelevanceAccepted:   2,
	}
	prev := -1
	for score := 0.0; score <= 1.0; score += 0.01 {
		cur := rank[s.ClassifyRelevance(score)]
		require.GreaterOrEqual(t, cur, prev, "state degraded as score rose at %f", score)
		prev = cur
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	s := newTestScorer()
	text := strings.Repeat("the oracle spoke a blessing over the votive offering. ", 6)
	first := s.Evaluate(text)
	second := s.Evaluate(text)
	assert.Equal(t, first, second)
}

func TestBuildOntologyLexicon_SplitsTerms(t *testing.T) {
	lexicon := BuildOntologyLexicon(model.OntologyDimensions, model.TraditionVocabulary)
	assert.True(t, lexicon["dawn"])
	assert.True(t, lexicon["operation"])
	assert.True(t, lexicon["libation"])
	assert.True(t, lexicon["celtic"])
	assert.False(t, lexicon[""])
}
