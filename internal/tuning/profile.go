// Package tuning loads operator-editable scoring profiles. A profile forks
// the default quality configuration — extra lexicon entries, threshold
// overrides, segmentation settings — without code changes. Profiles are
// plain YAML files checked by operators into the deployment.
package tuning

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/three-lanterns/curator/internal/quality"
)

// Profile is the YAML shape of a tuning profile.
type Profile struct {
	Name       string `yaml:"name"`
	Thresholds struct {
		RelevanceAccept *float64 `yaml:"relevance_accept_threshold"`
		RelevanceFilter *float64 `yaml:"relevance_filter_threshold"`
	} `yaml:"thresholds"`
	Lexicons struct {
		PositiveKeywords []string `yaml:"positive_keywords"`
		NoiseKeywords    []string `yaml:"noise_keywords"`
		NoisePhrases     []string `yaml:"noise_phrases"`
	} `yaml:"lexicons"`
	Segmentation struct {
		MinPassageLength     int `yaml:"min_passage_length"`
		MaxPassagesPerSource int `yaml:"max_passages_per_source_override"`
	} `yaml:"segmentation"`
	QualityVersion string `yaml:"quality_version"`
}

// Segmentation bounds for profile overrides.
const (
	defaultMinPassageLength = 180
	maxMinPassageLength     = 5000
	maxPassagesCeiling      = 500
)

// SegmentationSettings are the extraction knobs a profile may override.
type SegmentationSettings struct {
	MinPassageLength     int
	MaxPassagesPerSource int // 0 means no override
}

// LoadProfile reads a profile YAML file. A missing path yields the zero
// Profile (pure defaults).
func LoadProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "tuning: read profile %s", path)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, eris.Wrapf(err, "tuning: parse profile %s", path)
	}
	return p, nil
}

// BuildQualityConfig merges a profile over the default scoring config.
// Invalid threshold values fall back to defaults; the filter threshold is
// clamped so it never exceeds the accept threshold.
func BuildQualityConfig(p Profile, base quality.Config) quality.Config {
	cfg := base

	accept := ensureRatio(p.Thresholds.RelevanceAccept, base.AcceptThreshold)
	filter := ensureRatio(p.Thresholds.RelevanceFilter, base.FilterThreshold)
	if filter > accept {
		filter = accept
	}
	cfg.AcceptThreshold = accept
	cfg.FilterThreshold = filter

	cfg.PositiveKeywords = mergeSet(base.PositiveKeywords, p.Lexicons.PositiveKeywords)
	cfg.NoiseKeywords = mergeSet(base.NoiseKeywords, p.Lexicons.NoiseKeywords)

	phrases := make([]string, len(base.NoisePhrases))
	copy(phrases, base.NoisePhrases)
	for _, phrase := range p.Lexicons.NoisePhrases {
		compact := strings.ToLower(strings.TrimSpace(phrase))
		if compact != "" && !containsString(phrases, compact) {
			phrases = append(phrases, compact)
		}
	}
	cfg.NoisePhrases = phrases

	if v := strings.TrimSpace(p.QualityVersion); v != "" {
		cfg.Version = v
	}
	return cfg
}

// BuildSegmentation clamps the profile's segmentation overrides into range.
func BuildSegmentation(p Profile) SegmentationSettings {
	s := SegmentationSettings{MinPassageLength: defaultMinPassageLength}
	if p.Segmentation.MinPassageLength > 0 {
		s.MinPassageLength = min(p.Segmentation.MinPassageLength, maxMinPassageLength)
	}
	if p.Segmentation.MaxPassagesPerSource > 0 {
		s.MaxPassagesPerSource = min(p.Segmentation.MaxPassagesPerSource, maxPassagesCeiling)
	}
	return s
}

func ensureRatio(v *float64, fallback float64) float64 {
	if v == nil || *v < 0.0 || *v > 1.0 {
		return fallback
	}
	return *v
}

func mergeSet(base map[string]bool, extra []string) map[string]bool {
	merged := make(map[string]bool, len(base)+len(extra))
	for k := range base {
		merged[k] = true
	}
	for _, item := range extra {
		compact := strings.ToLower(strings.TrimSpace(item))
		if compact != "" {
			merged[compact] = true
		}
	}
	return merged
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
