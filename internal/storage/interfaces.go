package storage

import (
	"context"
	"time"

	"flexdx-bridge/internal/domain"
)

// SpotLogStore provides access to spot_log storage: one row per spot
// pushed to the radio, carrying the enrichment snapshot at push time.
type SpotLogStore interface {
	// Insert archives one enriched spot. Returns ErrDuplicateKey if
	// (spot_id, spotted_at) exists.
	Insert(ctx context.Context, e *domain.SpotLogEntry) error

	// CountSince returns the number of entries spotted at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// RecentByCallsign retrieves the newest entries for a callsign,
	// ordered by spotted_at DESC, at most limit rows.
	RecentByCallsign(ctx context.Context, call string, limit int) ([]*domain.SpotLogEntry, error)
}

// ActivityStore provides access to the spot_activity timeseries: one
// point per processed spot, for band-occupancy reporting.
type ActivityStore interface {
	// Record appends activity points.
	Record(ctx context.Context, points []*domain.ActivityPoint) error

	// BandTotals returns per-band point counts at or after since.
	BandTotals(ctx context.Context, since time.Time) (map[domain.Band]int64, error)
}
