package domain

// EnrichmentRecord carries the operator's contact history for a spotted
// callsign. Worked means at least one QSO is logged; Confirmed means the
// QSO was confirmed by the remote logging service. Each flag family is
// reported at four granularities: any, same mode, same band, and same
// band+mode.
type EnrichmentRecord struct {
	Worked         bool
	WorkedMode     bool
	WorkedBand     bool
	WorkedBandMode bool

	Confirmed         bool
	ConfirmedMode     bool
	ConfirmedBand     bool
	ConfirmedBandMode bool

	// DXCC identity of the spotted station.
	DXCC      int
	Country   string
	Continent string
	CQZone    int
	ITUZone   int

	// LoTWMember is derived from the lookup's days-since-last-upload
	// figure against the configured freshness threshold.
	LoTWMember bool
}

// NewDXCC reports whether the entity has never been confirmed at all.
func (r *EnrichmentRecord) NewDXCC() bool { return !r.Confirmed }

// NewDXCCOnBand reports whether the entity is unconfirmed on the spot's band.
func (r *EnrichmentRecord) NewDXCCOnBand() bool { return !r.ConfirmedBand }

// NewDXCCOnBandMode reports whether the entity is unconfirmed on the
// spot's band and mode.
func (r *EnrichmentRecord) NewDXCCOnBandMode() bool { return !r.ConfirmedBandMode }
