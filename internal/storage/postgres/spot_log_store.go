package postgres

import (
	"context"
	"fmt"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

// SpotLogStore implements storage.SpotLogStore using PostgreSQL.
type SpotLogStore struct {
	pool *Pool
}

// NewSpotLogStore creates a new SpotLogStore.
func NewSpotLogStore(pool *Pool) *SpotLogStore {
	return &SpotLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SpotLogStore = (*SpotLogStore)(nil)

// Insert archives one enriched spot. Returns ErrDuplicateKey if
// (spot_id, spotted_at) exists.
func (s *SpotLogStore) Insert(ctx context.Context, e *domain.SpotLogEntry) error {
	if e == nil || e.SpotID == "" || e.Call == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO spot_log (
			spot_id, callsign, spotter, band, mode, frequency_khz, comment,
			worked, confirmed, confirmed_band, confirmed_band_mode, lotw_member,
			spotted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		e.SpotID,
		e.Call,
		e.Spotter,
		string(e.Band),
		string(e.Mode),
		e.FrequencyKHz,
		e.Comment,
		e.Worked,
		e.Confirmed,
		e.ConfirmedBand,
		e.ConfirmedBandMode,
		e.LoTWMember,
		e.SpottedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert spot log entry: %w", err)
	}
	return nil
}

// CountSince returns the number of entries spotted at or after since.
func (s *SpotLogStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM spot_log WHERE spotted_at >= $1`

	var n int64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count spot log entries: %w", err)
	}
	return n, nil
}

// RecentByCallsign retrieves the newest entries for a callsign, ordered
// by spotted_at DESC, at most limit rows.
func (s *SpotLogStore) RecentByCallsign(ctx context.Context, call string, limit int) ([]*domain.SpotLogEntry, error) {
	if call == "" || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT spot_id, callsign, spotter, band, mode, frequency_khz, comment,
		       worked, confirmed, confirmed_band, confirmed_band_mode, lotw_member,
		       spotted_at, created_at
		FROM spot_log
		WHERE callsign = $1
		ORDER BY spotted_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, call, limit)
	if err != nil {
		return nil, fmt.Errorf("query spot log: %w", err)
	}
	defer rows.Close()

	var result []*domain.SpotLogEntry
	for rows.Next() {
		var (
			e          domain.SpotLogEntry
			band, mode string
		)
		err := rows.Scan(
			&e.SpotID, &e.Call, &e.Spotter, &band, &mode, &e.FrequencyKHz, &e.Comment,
			&e.Worked, &e.Confirmed, &e.ConfirmedBand, &e.ConfirmedBandMode, &e.LoTWMember,
			&e.SpottedAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan spot log entry: %w", err)
		}
		e.Band = domain.Band(band)
		e.Mode = domain.Mode(mode)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spot log rows: %w", err)
	}
	return result, nil
}
