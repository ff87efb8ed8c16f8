package domain

import "time"

// RadioSlice is one receive/transmit channel of the radio. Created on the
// first status line for an unseen slice index and updated in place on
// every subsequent status line; slices live as long as the radio session.
type RadioSlice struct {
	Index        int
	Letter       string
	FrequencyMHz float64
	Mode         Mode
	TX           bool
	Active       bool
	XITOn        bool
	XITFreqHz    int
	Station      string
}

// FrequencyHz returns the slice frequency in Hz.
func (s *RadioSlice) FrequencyHz() int64 {
	return int64(s.FrequencyMHz*1e6 + 0.5)
}

// RadioSpot is a spot entry living on the radio's own display. Created
// when a spot-add reply carries the radio-assigned id; destroyed on a
// spot-removed event, on re-spotting the same spot id, or by the
// expiration sweep.
type RadioSpot struct {
	RadioID   int
	SpotID    string
	Call      string
	ExpiresAt time.Time
}
