package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

func TestRegister_NewSource(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()

	reg := h.register(t, "morning_invocation.txt", ritualText)

	assert.Equal(t, model.DedupeNew, reg.Dedupe)
	assert.False(t, reg.AlreadyExisted)
	assert.Empty(t, reg.MatchedSourceID)
	assert.Equal(t, "morning invocation", reg.Text.CanonicalTitle)
	assert.Equal(t, digitizationRegistered, reg.Source.DigitizationStatus)
	assert.Empty(t, reg.Source.DuplicateOfID)

	groups, err := h.store.ListWitnessGroups(ctx, model.GroupActive, 10)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	events, err := h.store.ListAuditEvents(ctx, store.AuditFilter{ObjectID: reg.Source.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "register_source", events[0].Action)
	assert.Equal(t, "tester", events[0].Actor)
}

func TestRegister_SamePathReturnsExisting(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})

	first := h.register(t, "rite.txt", ritualText)
	second, err := h.pipeline.Register(context.Background(), RegisterInput{
		Path:       first.Source.Path,
		Region:     "europe_mediterranean",
		Traditions: []string{"greek_mystery"},
		Actor:      "tester",
	})
	require.NoError(t, err)

	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.Source.ID, second.Source.ID)
	assert.Equal(t, first.Text.ID, second.Text.ID)
	assert.Equal(t, model.DedupeExactDuplicate, second.Dedupe)
}

func TestRegister_ExactDuplicateContent(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()

	first := h.register(t, "rite_a.txt", ritualText)
	second := h.register(t, "rite_b.txt", ritualText)

	assert.Equal(t, model.DedupeExactDuplicate, second.Dedupe)
	assert.Equal(t, first.Source.ID, second.MatchedSourceID)
	assert.Equal(t, first.Source.ID, second.Source.DuplicateOfID)
	assert.Equal(t, digitizationDuplicate, second.Source.DigitizationStatus)
	assert.Equal(t, first.Text.ID, second.Source.TextID)

	// Both witnesses land in the one group.
	groups, err := h.store.ListWitnessGroups(ctx, model.GroupActive, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	members, err := h.store.ListGroupMembers(ctx, groups[0].ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t, nil, nil, Options{})
	ctx := context.Background()
	path := h.writeFile(t, "rite.txt", ritualText)

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"empty path", RegisterInput{Region: "europe_mediterranean", Traditions: []string{"greek_mystery"}}},
		{"unsupported extension", RegisterInput{Path: path + ".exe", Region: "europe_mediterranean", Traditions: []string{"greek_mystery"}}},
		{"unknown region", RegisterInput{Path: path, Region: "atlantis", Traditions: []string{"greek_mystery"}}},
		{"unknown tradition", RegisterInput{Path: path, Region: "europe_mediterranean", Traditions: []string{"disco"}}},
		{"missing file", RegisterInput{Path: path + ".missing.txt", Region: "europe_mediterranean", Traditions: []string{"greek_mystery"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.pipeline.Register(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, model.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestInferTitle(t *testing.T) {
	assert.Equal(t, "hymn to the dawn", inferTitle("/corpus/hymn_to_the-dawn.txt"))
	assert.Equal(t, "rite", inferTitle("rite.md"))
	assert.Equal(t, "Untitled Source", inferTitle("/corpus/___.txt"))
}
