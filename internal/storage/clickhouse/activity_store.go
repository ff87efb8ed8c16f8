package clickhouse

import (
	"context"
	"fmt"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Record appends activity points. The timeseries is append-only and
// carries no uniqueness constraint; duplicate points are harmless.
func (s *ActivityStore) Record(ctx context.Context, points []*domain.ActivityPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Band == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO spot_activity (time, band, mode)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Time, string(p.Band), string(p.Mode)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// BandTotals returns per-band point counts at or after since.
func (s *ActivityStore) BandTotals(ctx context.Context, since time.Time) (map[domain.Band]int64, error) {
	query := `
		SELECT band, count() AS total
		FROM spot_activity
		WHERE time >= ?
		GROUP BY band
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query band totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[domain.Band]int64)
	for rows.Next() {
		var (
			band  string
			total uint64
		)
		if err := rows.Scan(&band, &total); err != nil {
			return nil, fmt.Errorf("scan band total: %w", err)
		}
		totals[domain.Band(band)] = int64(total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate band totals: %w", err)
	}
	return totals, nil
}
