package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/storage"
)

// SpotLogStore is an in-memory implementation of storage.SpotLogStore.
type SpotLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SpotLogEntry
}

// NewSpotLogStore creates a new in-memory spot log store.
func NewSpotLogStore() *SpotLogStore {
	return &SpotLogStore{
		data: make(map[string]*domain.SpotLogEntry),
	}
}

// Compile-time interface check.
var _ storage.SpotLogStore = (*SpotLogStore)(nil)

// entryKey generates a unique key for a log entry.
func entryKey(spotID string, spottedAt time.Time) string {
	return fmt.Sprintf("%s|%d", spotID, spottedAt.UnixNano())
}

// Insert archives one enriched spot. Returns ErrDuplicateKey if
// (spot_id, spotted_at) exists.
func (s *SpotLogStore) Insert(_ context.Context, e *domain.SpotLogEntry) error {
	if e == nil || e.SpotID == "" || e.Call == "" {
		return storage.ErrInvalidInput
	}

	key := entryKey(e.SpotID, e.SpottedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.data[key] = &cp
	return nil
}

// CountSince returns the number of entries spotted at or after since.
func (s *SpotLogStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.data {
		if !e.SpottedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// RecentByCallsign retrieves the newest entries for a callsign, ordered
// by spotted_at DESC, at most limit rows.
func (s *SpotLogStore) RecentByCallsign(_ context.Context, call string, limit int) ([]*domain.SpotLogEntry, error) {
	if call == "" || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SpotLogEntry
	for _, e := range s.data {
		if e.Call == call {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SpottedAt.After(result[j].SpottedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
