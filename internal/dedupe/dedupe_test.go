package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
)

type fakeIndex struct {
	byRaw        map[string][]model.SourceMaterial
	byNormalized map[string][]model.SourceMaterial
}

func (f *fakeIndex) SourcesByRawHash(_ context.Context, hash string) ([]model.SourceMaterial, error) {
	return f.byRaw[hash], nil
}

func (f *fakeIndex) SourcesByNormalizedHash(_ context.Context, hash string) ([]model.SourceMaterial, error) {
	return f.byNormalized[hash], nil
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  Hwaet!\n\nWe   Gardena \t in geardagum ", 0)
	assert.Equal(t, "hwaet! we gardena in geardagum", got)

	assert.Equal(t, "abc", NormalizeText("ABC DEF", 3))
	assert.Equal(t, "", NormalizeText("   \n\t  ", 100))
}

func TestComputeFingerprintStable(t *testing.T) {
	a := ComputeFingerprint([]byte("raw bytes"), "Some  Text", 0)
	b := ComputeFingerprint([]byte("raw bytes"), "some text", 0)
	assert.Equal(t, a.NormalizedSHA256, b.NormalizedSHA256)
	assert.Equal(t, a.RawSHA256, b.RawSHA256)
	assert.Len(t, a.RawSHA256, 64)

	c := ComputeFingerprint([]byte("other bytes"), "some text", 0)
	assert.NotEqual(t, a.RawSHA256, c.RawSHA256)
	assert.Equal(t, a.NormalizedSHA256, c.NormalizedSHA256)
}

func TestResolveExactDuplicateWins(t *testing.T) {
	fp := ComputeFingerprint([]byte("same"), "same", 0)
	older := model.SourceMaterial{ID: "src_old", CreatedAt: time.Now().Add(-time.Hour)}
	newer := model.SourceMaterial{ID: "src_new", CreatedAt: time.Now()}
	index := &fakeIndex{
		byRaw:        map[string][]model.SourceMaterial{fp.RawSHA256: {newer, older}},
		byNormalized: map[string][]model.SourceMaterial{fp.NormalizedSHA256: {newer}},
	}

	res, err := Resolve(context.Background(), index, fp)
	require.NoError(t, err)
	assert.Equal(t, model.DedupeExactDuplicate, res.Status)
	assert.Equal(t, "src_old", res.MatchedSourceID)
}

func TestResolveAlternateWitness(t *testing.T) {
	fp := ComputeFingerprint([]byte("variant bytes"), "pour the libation at dawn", 0)
	index := &fakeIndex{
		byRaw: map[string][]model.SourceMaterial{},
		byNormalized: map[string][]model.SourceMaterial{
			fp.NormalizedSHA256: {{ID: "src_a", CreatedAt: time.Now()}},
		},
	}

	res, err := Resolve(context.Background(), index, fp)
	require.NoError(t, err)
	assert.Equal(t, model.DedupeAlternateWitness, res.Status)
	assert.Equal(t, "src_a", res.MatchedSourceID)
}

func TestResolveNew(t *testing.T) {
	fp := ComputeFingerprint([]byte("fresh"), "fresh text", 0)
	index := &fakeIndex{byRaw: map[string][]model.SourceMaterial{}, byNormalized: map[string][]model.SourceMaterial{}}

	res, err := Resolve(context.Background(), index, fp)
	require.NoError(t, err)
	assert.Equal(t, model.DedupeNew, res.Status)
	assert.Empty(t, res.MatchedSourceID)
}
