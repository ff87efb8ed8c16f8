package memory

import (
	"context"
	"sync"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	points []domain.ActivityPoint
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Record appends activity points.
func (s *ActivityStore) Record(_ context.Context, points []*domain.ActivityPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Band == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points = append(s.points, *p)
	}
	return nil
}

// BandTotals returns per-band point counts at or after since.
func (s *ActivityStore) BandTotals(_ context.Context, since time.Time) (map[domain.Band]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[domain.Band]int64)
	for _, p := range s.points {
		if !p.Time.Before(since) {
			totals[p.Band]++
		}
	}
	return totals, nil
}
