// Package dedupe fingerprints source material and classifies incoming files
// against previously registered sources.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/three-lanterns/curator/internal/model"
)

// DefaultNormalizedMaxChars bounds the text fed into the normalized hash so
// a trailing-boilerplate difference in a huge file still collides.
const DefaultNormalizedMaxChars = 20000

// Fingerprint carries both content hashes for one source file.
type Fingerprint struct {
	RawSHA256        string
	NormalizedSHA256 string
}

// Resolution is the dedup verdict for an incoming source.
type Resolution struct {
	Status model.DedupeStatus
	// MatchedSourceID is the earliest registered source that collided,
	// empty when Status is DedupeNew.
	MatchedSourceID string
}

// SourceIndex is the subset of store lookups dedup needs.
type SourceIndex interface {
	SourcesByRawHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
	SourcesByNormalizedHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
}

// ComputeFingerprint hashes the raw bytes and the whitespace-normalized text.
func ComputeFingerprint(raw []byte, text string, maxChars int) Fingerprint {
	if maxChars <= 0 {
		maxChars = DefaultNormalizedMaxChars
	}
	return Fingerprint{
		RawSHA256:        hashBytes(raw),
		NormalizedSHA256: hashBytes([]byte(NormalizeText(text, maxChars))),
	}
}

// NormalizeText lowercases, collapses all whitespace runs to single spaces,
// and truncates to maxChars runes. Case folding catches re-encoded witnesses
// whose bytes differ only in capitalization conventions.
func NormalizeText(text string, maxChars int) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if maxChars > 0 {
		runes := []rune(collapsed)
		if len(runes) > maxChars {
			collapsed = string(runes[:maxChars])
		}
	}
	return collapsed
}

// Resolve classifies a fingerprint against the registered corpus. A raw-hash
// collision is an exact duplicate; a normalized-hash collision is an
// alternate witness of the same text. The earliest registered match wins.
func Resolve(ctx context.Context, index SourceIndex, fp Fingerprint) (Resolution, error) {
	exact, err := index.SourcesByRawHash(ctx, fp.RawSHA256)
	if err != nil {
		return Resolution{}, eris.Wrap(err, "dedupe: lookup raw hash")
	}
	if match := earliest(exact); match != nil {
		return Resolution{Status: model.DedupeExactDuplicate, MatchedSourceID: match.ID}, nil
	}

	similar, err := index.SourcesByNormalizedHash(ctx, fp.NormalizedSHA256)
	if err != nil {
		return Resolution{}, eris.Wrap(err, "dedupe: lookup normalized hash")
	}
	if match := earliest(similar); match != nil {
		return Resolution{Status: model.DedupeAlternateWitness, MatchedSourceID: match.ID}, nil
	}

	return Resolution{Status: model.DedupeNew}, nil
}

func earliest(sources []model.SourceMaterial) *model.SourceMaterial {
	var best *model.SourceMaterial
	for i := range sources {
		if best == nil || sources[i].CreatedAt.Before(best.CreatedAt) {
			best = &sources[i]
		}
	}
	return best
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
