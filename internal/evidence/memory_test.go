package evidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	err := store.Add(context.Background(), []Document{
		{
			SourceID:   "air-1995-sc-123",
			Content:    "The Supreme Court held that the security deposit must be refunded to the tenant within limitation",
			TrustScore: 0.9,
			Metadata:   map[string]any{"court": "supreme"},
		},
		{
			SourceID:   "air-2001-kar-45",
			Content:    "The High Court dismissed the suit for recovery of deposit as time-barred",
			TrustScore: 0.8,
			Metadata:   map[string]any{"court": "high"},
		},
		{
			SourceID:   "sec-limitation-act",
			Content:    "Limitation period for recovery of money is three years from when the right accrues",
			TrustScore: 0.95,
			Metadata:   map[string]any{"court": "statute"},
		},
	})
	require.NoError(t, err)
	return store
}

func TestMemoryStore_QueryRanksbyOverlap(t *testing.T) {
	store := seedStore(t)

	results, err := store.Query(context.Background(), "security deposit refund tenant", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "air-1995-sc-123", results[0].SourceID)
	assert.InDelta(t, 0.9, results[0].TrustScore, 1e-9)
}

func TestMemoryStore_EmptyResultNotError(t *testing.T) {
	store := seedStore(t)

	results, err := store.Query(context.Background(), "patent infringement damages", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_EmptyQueryRejected(t *testing.T) {
	store := seedStore(t)

	_, err := store.Query(context.Background(), "   ", nil, 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestMemoryStore_FiltersByMetadata(t *testing.T) {
	store := seedStore(t)

	results, err := store.Query(context.Background(), "deposit recovery", map[string]any{"court": "high"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "air-2001-kar-45", results[0].SourceID)
}

func TestMemoryStore_DeterministicOrdering(t *testing.T) {
	store := seedStore(t)

	first, err := store.Query(context.Background(), "deposit limitation recovery", nil, 5)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := store.Query(context.Background(), "deposit limitation recovery", nil, 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMemoryStore_RespectsK(t *testing.T) {
	store := seedStore(t)

	results, err := store.Query(context.Background(), "deposit limitation recovery", nil, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
