package interactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoices(t *testing.T) {
	ran := ""

	labels, byLabel := choices([]MenuOption{
		{Name: "Run", Description: "Probe a site", Action: func() error { ran = "run"; return nil }},
		{Name: "Show Config"},
	})

	assert.Equal(t, []string{"Run - Probe a site", "Show Config", "Exit"}, labels)
	require.Contains(t, byLabel, "Run - Probe a site")
	assert.NotContains(t, byLabel, "Exit")

	require.NoError(t, byLabel["Run - Probe a site"].Action())
	assert.Equal(t, "run", ran)
}

func TestChoices_Empty(t *testing.T) {
	labels, byLabel := choices(nil)

	assert.Equal(t, []string{"Exit"}, labels)
	assert.Empty(t, byLabel)
}
