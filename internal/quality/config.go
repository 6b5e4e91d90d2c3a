package quality

import "strings"

// Default classification thresholds. Overridable per tuning profile.
const (
	DefaultFilterThreshold = 0.30
	DefaultAcceptThreshold = 0.50
	DefaultVersion         = "quality_v1"
)

var ritualKeywords = []string{
	"ritual", "magic", "magical", "mystic", "mysticism", "pagan", "occult",
	"esoteric", "incantation", "invocation", "offering", "libation",
	"divination", "sigil", "amulet", "altar", "ceremony", "prayer", "spell",
	"curse", "blessing", "oracle", "deity", "ancestor", "spirit", "temple",
	"sanctuary", "liturgy", "recitation", "anointing", "consecrate",
	"apotropaic", "votive",
}

var noiseKeywords = []string{
	"table", "contents", "index", "chapter", "copyright", "isbn",
	"navigation", "header", "footer", "advertisement", "appendix", "preface",
	"publisher", "project", "gutenberg", "http", "www", "click", "download",
	"menu", "breadcrumb", "sidebar",
}

var noisePhrases = []string{
	"table of contents", "all rights reserved", "project gutenberg",
	"chapter one", "chapter 1", "page number", "copyright notice",
	"navigation menu",
}

// Config is an immutable snapshot of scoring thresholds and lexicons.
// Operators fork the default via tuning profiles; components receive a Config
// at construction and never consult ambient state.
type Config struct {
	FilterThreshold  float64
	AcceptThreshold  float64
	Version          string
	PositiveKeywords map[string]bool
	NoiseKeywords    map[string]bool
	NoisePhrases     []string
}

// DefaultConfig returns the built-in scoring configuration: the ritual
// keyword lexicon unioned with individual ontology term parts, plus the
// boilerplate noise sets.
func DefaultConfig(ontologyLexicon map[string]bool) Config {
	positive := make(map[string]bool, len(ontologyLexicon)+len(ritualKeywords))
	for term := range ontologyLexicon {
		positive[term] = true
	}
	for _, kw := range ritualKeywords {
		positive[kw] = true
	}
	noise := make(map[string]bool, len(noiseKeywords))
	for _, kw := range noiseKeywords {
		noise[kw] = true
	}
	phrases := make([]string, len(noisePhrases))
	copy(phrases, noisePhrases)
	return Config{
		FilterThreshold:  DefaultFilterThreshold,
		AcceptThreshold:  DefaultAcceptThreshold,
		Version:          DefaultVersion,
		PositiveKeywords: positive,
		NoiseKeywords:    noise,
		NoisePhrases:     phrases,
	}
}

// BuildOntologyLexicon splits controlled terms and tradition tags into their
// underscore-separated parts ("dawn_operation" contributes "dawn" and
// "operation").
func BuildOntologyLexicon(dimensions map[string][]string, traditions map[string]bool) map[string]bool {
	lexicon := make(map[string]bool)
	add := func(term string) {
		for _, part := range strings.Split(strings.ToLower(term), "_") {
			if part != "" {
				lexicon[part] = true
			}
		}
	}
	for _, terms := range dimensions {
		for _, term := range terms {
			add(term)
		}
	}
	for tag := range traditions {
		add(tag)
	}
	return lexicon
}
