package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

func TestActivityStore_RecordAndTotals(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewActivityStore(conn)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	points := []*domain.ActivityPoint{
		{Time: base, Band: domain.Band20m, Mode: domain.ModeCW},
		{Time: base.Add(time.Minute), Band: domain.Band20m, Mode: domain.ModeUSB},
		{Time: base.Add(2 * time.Minute), Band: domain.Band40m, Mode: domain.ModeFT8},
	}
	require.NoError(t, store.Record(ctx, points))

	totals, err := store.BandTotals(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals[domain.Band20m])
	assert.Equal(t, int64(1), totals[domain.Band40m])

	totals, err = store.BandTotals(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Zero(t, totals[domain.Band20m])
	assert.Equal(t, int64(1), totals[domain.Band40m])
}

func TestActivityStore_EmptyBatch(t *testing.T) {
	store := NewActivityStore(nil)
	require.NoError(t, store.Record(context.Background(), nil))
}

func TestActivityStore_InvalidInput(t *testing.T) {
	store := NewActivityStore(nil)
	err := store.Record(context.Background(), []*domain.ActivityPoint{{Time: time.Now()}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
