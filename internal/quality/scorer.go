// Package quality scores passage text for usability (OCR/encoding health)
// and topical relevance. Scoring is pure and deterministic: same text and
// config always produce the same assessment.
package quality

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/three-lanterns/curator/internal/model"
)

var (
	tokenPattern         = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'-]*`)
	punctPattern         = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	controlPattern       = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	noisySymbolPattern   = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?"'()\-]`)
	symbolClusterPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]{3,}`)
	digitsOnly           = regexp.MustCompile(`^[0-9]+$`)
)

// Scorer evaluates passage text against a scoring Config.
type Scorer struct {
	cfg      Config
	ontology map[string]bool
	ritual   map[string]bool
}

// NewScorer builds a Scorer over the given config and the raw ontology
// lexicon (used for the coherence category check).
func NewScorer(cfg Config, ontologyLexicon map[string]bool) *Scorer {
	ritual := make(map[string]bool, len(ritualKeywords))
	for _, kw := range ritualKeywords {
		ritual[kw] = true
	}
	return &Scorer{cfg: cfg, ontology: ontologyLexicon, ritual: ritual}
}

// Assessment is the full scoring outcome for one passage.
type Assessment struct {
	UsabilityScore float64              `json:"usability_score"`
	RelevanceScore float64              `json:"relevance_score"`
	RelevanceState model.RelevanceState `json:"relevance_state"`
	Usability      UsabilityNotes       `json:"usability"`
	Relevance      RelevanceNotes       `json:"relevance"`
	Version        string               `json:"quality_version"`
}

// UsabilityNotes carries the diagnostic ratios behind the usability score.
type UsabilityNotes struct {
	PrintableRatio     float64 `json:"printable_ratio"`
	ControlRatio       float64 `json:"control_ratio"`
	AlphaTokenRatio    float64 `json:"alpha_token_ratio"`
	DigitTokenRatio    float64 `json:"digit_token_ratio"`
	ReplacementRatio   float64 `json:"replacement_ratio"`
	RepetitionRatio    float64 `json:"repetition_ratio"`
	PunctuationRatio   float64 `json:"punctuation_ratio"`
	NoisySymbolRatio   float64 `json:"noisy_symbol_ratio"`
	SymbolClusterRatio float64 `json:"symbol_cluster_ratio"`
	NoisePenalty       float64 `json:"noise_penalty"`
	AverageWordLength  float64 `json:"average_word_length"`
}

// RelevanceNotes carries the diagnostic counts behind the relevance score.
type RelevanceNotes struct {
	PositiveHits       int     `json:"positive_hits"`
	OntologyHits       int     `json:"ontology_hits"`
	NegativeHits       int     `json:"negative_hits"`
	PositiveDensity    float64 `json:"positive_density"`
	OntologyDensity    float64 `json:"ontology_density"`
	NegativeDensity    float64 `json:"negative_density"`
	NegativePhraseHits int     `json:"negative_phrase_hits"`
	CoherenceScore     float64 `json:"coherence_score"`
}

// Notes flattens the diagnostic breakdown for persistence alongside the
// scored passage.
func (a Assessment) Notes() map[string]any {
	return map[string]any{
		"usability": a.Usability,
		"relevance": a.Relevance,
	}
}

// Evaluate scores text and classifies its relevance state.
func (s *Scorer) Evaluate(text string) Assessment {
	usability, un := s.scoreUsability(text)
	relevance, rn := s.scoreRelevance(text)
	return Assessment{
		UsabilityScore: usability,
		RelevanceScore: relevance,
		RelevanceState: s.ClassifyRelevance(relevance),
		Usability:      un,
		Relevance:      rn,
		Version:        s.cfg.Version,
	}
}

// ClassifyRelevance maps a relevance score onto the three-state ladder.
// Monotonic in score: a lower score never yields a better state.
func (s *Scorer) ClassifyRelevance(score float64) model.RelevanceState {
	if score < s.cfg.FilterThreshold {
		return model.RelevanceFiltered
	}
	if score < s.cfg.AcceptThreshold {
		return model.RelevanceBorderline
	}
	return model.RelevanceAccepted
}

func (s *Scorer) scoreUsability(text string) (float64, UsabilityNotes) {
	if text == "" {
		return 0.0, UsabilityNotes{ReplacementRatio: 1, NoisySymbolRatio: 1, SymbolClusterRatio: 1, RepetitionRatio: 1, PunctuationRatio: 1}
	}

	runes := []rune(text)
	length := float64(max(len(runes), 1))
	tokens := tokenize(text)
	totalTokens := float64(max(len(tokens), 1))

	printable := 0
	for _, r := range runes {
		if unicode.IsPrint(r) {
			printable++
		}
	}
	printableRatio := float64(printable) / length
	controlRatio := float64(len(controlPattern.FindAllString(text, -1))) / length
	replacementRatio := float64(strings.Count(text, "�")+strings.Count(text, "ï¿½")) / length

	alphaTokens := 0
	digitTokens := 0
	unique := make(map[string]bool, len(tokens))
	tokenChars := 0
	for _, tok := range tokens {
		if strings.IndexFunc(tok, unicode.IsLetter) >= 0 {
			alphaTokens++
		}
		if digitsOnly.MatchString(tok) {
			digitTokens++
		}
		unique[tok] = true
		tokenChars += len([]rune(tok))
	}
	alphaTokenRatio := float64(alphaTokens) / totalTokens
	digitTokenRatio := float64(digitTokens) / totalTokens
	uniqueRatio := float64(len(unique)) / totalTokens
	repetitionRatio := 1.0 - uniqueRatio
	punctuationRatio := float64(len(punctPattern.FindAllString(text, -1))) / length

	noisySymbolRatio := float64(len(noisySymbolPattern.FindAllString(text, -1))) / length
	clusterChars := 0
	for _, m := range symbolClusterPattern.FindAllString(text, -1) {
		clusterChars += len([]rune(m))
	}
	symbolClusterRatio := float64(clusterChars) / length
	averageWordLength := float64(tokenChars) / totalTokens

	printableScore := clamp((printableRatio - 0.85) / 0.15)
	controlScore := clamp(1.0 - controlRatio/0.02)
	replacementScore := clamp(1.0 - replacementRatio/0.03)
	alphaScore := clamp((alphaTokenRatio - 0.45) / 0.55)
	digitScore := clamp(1.0 - digitTokenRatio/0.12)
	repetitionScore := clamp((uniqueRatio - 0.18) / 0.82)
	punctuationScore := clamp(1.0 - punctuationRatio/0.28)
	noisySymbolScore := clamp(1.0 - noisySymbolRatio/0.04)
	symbolClusterScore := clamp(1.0 - symbolClusterRatio/0.06)
	wordLengthScore := clamp(1.0 - math.Abs(averageWordLength-6.0)/8.0)

	weighted := printableScore*0.12 +
		controlScore*0.08 +
		replacementScore*0.12 +
		alphaScore*0.12 +
		digitScore*0.05 +
		repetitionScore*0.10 +
		punctuationScore*0.10 +
		noisySymbolScore*0.14 +
		symbolClusterScore*0.07 +
		wordLengthScore*0.10

	noisePenalty := math.Min(noisySymbolRatio*0.55+symbolClusterRatio*0.35+replacementRatio*0.8, 0.35)
	final := round4(clamp(weighted - noisePenalty))

	return final, UsabilityNotes{
		PrintableRatio:     round4(printableRatio),
		ControlRatio:       round4(controlRatio),
		AlphaTokenRatio:    round4(alphaTokenRatio),
		DigitTokenRatio:    round4(digitTokenRatio),
		ReplacementRatio:   round4(replacementRatio),
		RepetitionRatio:    round4(repetitionRatio),
		PunctuationRatio:   round4(punctuationRatio),
		NoisySymbolRatio:   round4(noisySymbolRatio),
		SymbolClusterRatio: round4(symbolClusterRatio),
		NoisePenalty:       round4(noisePenalty),
		AverageWordLength:  round4(averageWordLength),
	}
}

func (s *Scorer) scoreRelevance(text string) (float64, RelevanceNotes) {
	lowered := strings.ToLower(text)
	tokens := tokenize(lowered)
	totalTokens := float64(max(len(tokens), 1))

	positiveHits := 0
	ontologyHits := 0
	negativeHits := 0
	ritualHits := 0
	for _, tok := range tokens {
		if s.cfg.PositiveKeywords[tok] {
			positiveHits++
		}
		if s.ontology[tok] {
			ontologyHits++
		}
		if s.cfg.NoiseKeywords[tok] {
			negativeHits++
		}
		if s.ritual[tok] {
			ritualHits++
		}
	}
	positiveDensity := float64(positiveHits) / totalTokens
	ontologyDensity := float64(ontologyHits) / totalTokens
	negativeDensity := float64(negativeHits) / totalTokens

	phraseHits := 0
	for _, phrase := range s.cfg.NoisePhrases {
		if strings.Contains(lowered, phrase) {
			phraseHits++
		}
	}
	phrasePenalty := math.Min(float64(phraseHits)*0.12, 0.36)

	traditionHits := 0
	for tag := range model.TraditionVocabulary {
		if strings.Contains(lowered, tag) || strings.Contains(lowered, strings.ReplaceAll(tag, "_", " ")) {
			traditionHits++
		}
	}
	categories := 0
	for _, hits := range []int{ritualHits, ontologyHits, traditionHits} {
		if hits > 0 {
			categories++
		}
	}
	coherence := clamp(float64(categories) / 3.0)

	weighted := 0.22 +
		positiveDensity*5.0 +
		ontologyDensity*3.0 +
		coherence*0.18 -
		negativeDensity*4.4 -
		phrasePenalty
	final := round4(clamp(weighted))

	return final, RelevanceNotes{
		PositiveHits:       positiveHits,
		OntologyHits:       ontologyHits,
		NegativeHits:       negativeHits,
		PositiveDensity:    round4(positiveDensity),
		OntologyDensity:    round4(ontologyDensity),
		NegativeDensity:    round4(negativeDensity),
		NegativePhraseHits: phraseHits,
		CoherenceScore:     round4(coherence),
	}
}

func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
