package domain

import (
	"fmt"
	"time"
)

// Band is an amateur radio band label ("20m", "70cm", ...).
type Band string

// Amateur bands covered by the classifier.
const (
	Band160m    Band = "160m"
	Band80m     Band = "80m"
	Band60m     Band = "60m"
	Band40m     Band = "40m"
	Band30m     Band = "30m"
	Band20m     Band = "20m"
	Band17m     Band = "17m"
	Band15m     Band = "15m"
	Band12m     Band = "12m"
	Band10m     Band = "10m"
	Band6m      Band = "6m"
	Band2m      Band = "2m"
	Band70cm    Band = "70cm"
	BandUnknown Band = "unknown"
)

// Mode is an operating mode label.
type Mode string

// Operating modes recognized by the classifier and the radio.
const (
	ModeCW      Mode = "CW"
	ModeUSB     Mode = "USB"
	ModeLSB     Mode = "LSB"
	ModeAM      Mode = "AM"
	ModeFM      Mode = "FM"
	ModeRTTY    Mode = "RTTY"
	ModeFT8     Mode = "FT8"
	ModeFT4     Mode = "FT4"
	ModeDigital Mode = "DIGI"
	ModeUnknown Mode = ""
)

// DxSpot is one community-sourced announcement that a callsign was heard
// on a frequency. Created by the cluster client, enriched by the cache,
// pushed to the radio, then discarded.
type DxSpot struct {
	Spotter      string
	Call         string
	FrequencyKHz float64
	Message      string
	Time         time.Time
	Band         Band
	Mode         Mode

	// Enrichment is attached by the enrichment cache. Nil when the
	// lookup failed; the spot still proceeds through the pipeline.
	Enrichment *EnrichmentRecord
}

// ID is the deduplication key for a spot: same station heard again on the
// same band and mode maps to the same id.
func (s *DxSpot) ID() string {
	return fmt.Sprintf("%s-%s-%s", s.Call, s.Band, s.Mode)
}

// FrequencyHz returns the spot frequency in Hz.
func (s *DxSpot) FrequencyHz() int64 {
	return int64(s.FrequencyKHz * 1000)
}

// FrequencyMHz returns the spot frequency in MHz.
func (s *DxSpot) FrequencyMHz() float64 {
	return s.FrequencyKHz / 1000
}
