package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

func testEntry(call string, spottedAt time.Time) *domain.SpotLogEntry {
	return &domain.SpotLogEntry{
		SpotID:       call + "-20m-CW",
		Call:         call,
		Spotter:      "W3LPL",
		Band:         domain.Band20m,
		Mode:         domain.ModeCW,
		FrequencyKHz: 14025.0,
		Comment:      "new DXCC",
		Confirmed:    false,
		LoTWMember:   true,
		SpottedAt:    spottedAt,
	}
}

func TestSpotLogStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSpotLogStore(pool)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, testEntry("K1JT", base)))
	require.NoError(t, store.Insert(ctx, testEntry("K1JT", base.Add(time.Minute))))
	require.NoError(t, store.Insert(ctx, testEntry("P5DX", base.Add(2*time.Minute))))

	n, err := store.CountSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	result, err := store.RecentByCallsign(ctx, "K1JT", 10)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "K1JT", result[0].Call)
	assert.True(t, result[0].SpottedAt.After(result[1].SpottedAt))
	assert.Equal(t, domain.Band20m, result[0].Band)
	assert.Equal(t, domain.ModeCW, result[0].Mode)
	assert.True(t, result[0].LoTWMember)
	assert.False(t, result[0].CreatedAt.IsZero())
}

func TestSpotLogStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSpotLogStore(pool)
	ctx := context.Background()
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, testEntry("K1JT", at)))
	err := store.Insert(ctx, testEntry("K1JT", at))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSpotLogStore_InvalidInput(t *testing.T) {
	store := NewSpotLogStore(nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.SpotLogEntry{}), storage.ErrInvalidInput)

	_, err := store.RecentByCallsign(ctx, "", 10)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	_, err = store.RecentByCallsign(ctx, "K1JT", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSpotLogStore_RecentLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSpotLogStore(pool)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, testEntry("K1JT", base.Add(time.Duration(i)*time.Minute))))
	}

	result, err := store.RecentByCallsign(ctx, "K1JT", 3)
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, base.Add(4*time.Minute).Unix(), result[0].SpottedAt.Unix())
}
