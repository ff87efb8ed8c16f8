package domain

import "time"

// EventType identifies an orchestrator-facing event.
type EventType string

// Events produced by the pipeline for external consumers (GUI shell,
// logging integrations).
const (
	EventSpotEnriched        EventType = "spot_enriched"
	EventSliceUpdated        EventType = "slice_updated"
	EventSpotTriggered       EventType = "spot_triggered"
	EventRadioConnected      EventType = "radio_connected"
	EventRadioDisconnected   EventType = "radio_disconnected"
	EventRadioError          EventType = "radio_error"
	EventClusterConnected    EventType = "cluster_connected"
	EventClusterDisconnected EventType = "cluster_disconnected"
	EventClusterError        EventType = "cluster_error"
	EventCacheHealth         EventType = "cache_health"
)

// Event is the single envelope published on the pipeline's outbound
// channel. Only the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	Spot     *DxSpot      `json:"spot,omitempty"`
	Slice    *RadioSlice  `json:"slice,omitempty"`
	Callsign string       `json:"callsign,omitempty"`
	Health   *CacheHealth `json:"health,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// CacheHealthState classifies the enrichment cache's overall health.
type CacheHealthState string

const (
	CacheWarming   CacheHealthState = "warming"
	CacheHealthy   CacheHealthState = "healthy"
	CacheUnhealthy CacheHealthState = "unhealthy"
)

// CacheHealth is a point-in-time snapshot of the enrichment cache.
type CacheHealth struct {
	Size      int              `json:"size"`
	MaxSize   int              `json:"max_size"`
	Processed int64            `json:"processed"`
	Hits      int64            `json:"hits"`
	Misses    int64            `json:"misses"`
	HitRate   float64          `json:"hit_rate"`
	State     CacheHealthState `json:"state"`
}
