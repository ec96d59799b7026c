package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triviarena/triviarena-server/models"
)

func TestMemoryHistory(t *testing.T) {
	h := NewMemoryHistory()

	count, err := h.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Record(models.MatchRecord{
			ID:         i,
			Mode:       "simple",
			Winner:     "alice",
			Players:    []string{"alice", "bob"},
			Scores:     map[string]int{"alice": 4, "bob": 1},
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		}))
	}

	count, err = h.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recent, err := h.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.Equal(t, 3, recent[0].ID)
	assert.Equal(t, 2, recent[1].ID)

	all, err := h.Recent(10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
