// Package enrichment attaches contact-history context to spots through a
// bounded cache in front of an external lookup service.
package enrichment

import (
	"context"

	"flexdx-bridge/internal/domain"
)

// LookupResult is the raw answer from the lookup service, before LoTW
// membership has been derived.
type LookupResult struct {
	Worked         bool
	WorkedMode     bool
	WorkedBand     bool
	WorkedBandMode bool

	Confirmed         bool
	ConfirmedMode     bool
	ConfirmedBand     bool
	ConfirmedBandMode bool

	DXCC      int
	Country   string
	Continent string
	CQZone    int
	ITUZone   int

	// NotLoTWMember is set when the service reports the station has no
	// LoTW account at all. Otherwise DaysSinceLoTWUpload holds the
	// service's days-since-last-upload figure verbatim, which is not
	// always numeric.
	NotLoTWMember       bool
	DaysSinceLoTWUpload string
}

// Lookup resolves a callsign's contact history for a given band and mode.
type Lookup interface {
	Lookup(ctx context.Context, call string, band domain.Band, mode domain.Mode) (*LookupResult, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, call string, band domain.Band, mode domain.Mode) (*LookupResult, error)

func (f LookupFunc) Lookup(ctx context.Context, call string, band domain.Band, mode domain.Mode) (*LookupResult, error) {
	return f(ctx, call, band, mode)
}
