package domain

import "time"

// SpotLogEntry is the archived form of an enriched spot.
// Corresponds to the spot_log table in PostgreSQL.
type SpotLogEntry struct {
	SpotID       string
	Call         string
	Spotter      string
	Band         Band
	Mode         Mode
	FrequencyKHz float64
	Comment      string

	Worked            bool
	Confirmed         bool
	ConfirmedBand     bool
	ConfirmedBandMode bool
	LoTWMember        bool

	SpottedAt time.Time
	CreatedAt time.Time
}

// ActivityPoint is one row of the per-band spot activity timeseries.
// Corresponds to the spot_activity table in ClickHouse.
type ActivityPoint struct {
	Time time.Time
	Band Band
	Mode Mode
}
