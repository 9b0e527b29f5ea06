package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clementus360/clinic-assistant/types"
)

func TestGroupByCategory(t *testing.T) {
	sessions := []types.Session{
		{ID: "s0", Category: "A"},
		{ID: "s1"},
		{ID: "s2", Category: "A"},
	}

	grouping := GroupByCategory(sessions)

	require.Len(t, grouping.Categories, 1)
	assert.Equal(t, "A", grouping.Categories[0].Name)
	assert.Equal(t, []string{"s0", "s2"}, ids(grouping.Categories[0].Sessions))
	assert.Equal(t, []string{"s1"}, ids(grouping.Uncategorized))
}

func TestGroupByCategory_FirstOccurrenceOrder(t *testing.T) {
	sessions := []types.Session{
		{ID: "s0", Category: "Oncology"},
		{ID: "s1", Category: "Cardiology"},
		{ID: "s2", Category: "  "},
		{ID: "s3", Category: "Oncology"},
		{ID: "s4", Category: "Cardiology"},
		{ID: "s5", Category: "Pediatrics"},
	}

	grouping := GroupByCategory(sessions)

	names := make([]string, len(grouping.Categories))
	for i, group := range grouping.Categories {
		names[i] = group.Name
	}
	assert.Equal(t, []string{"Oncology", "Cardiology", "Pediatrics"}, names)

	cardiology, ok := grouping.Group("Cardiology")
	require.True(t, ok)
	assert.Equal(t, []string{"s1", "s4"}, ids(cardiology.Sessions))
	assert.Equal(t, []string{"s2"}, ids(grouping.Uncategorized))

	_, ok = grouping.Group("Neurology")
	assert.False(t, ok)

	assert.Equal(t, grouping, GroupByCategory(sessions))
}

func TestGroupByCategory_TrimsNames(t *testing.T) {
	sessions := []types.Session{
		{ID: "s0", Category: "Injectables"},
		{ID: "s1", Category: "Injectables "},
		{ID: "s2", Category: " Injectables"},
	}

	grouping := GroupByCategory(sessions)

	require.Len(t, grouping.Categories, 1)
	assert.Equal(t, "Injectables", grouping.Categories[0].Name)
	assert.Equal(t, []string{"s0", "s1", "s2"}, ids(grouping.Categories[0].Sessions))
}

func TestGroupByCategory_Empty(t *testing.T) {
	grouping := GroupByCategory(nil)

	assert.Empty(t, grouping.Categories)
	assert.Empty(t, grouping.Uncategorized)
}

func ids(sessions []types.Session) []string {
	out := make([]string, len(sessions))
	for i, session := range sessions {
		out[i] = session.ID
	}
	return out
}
