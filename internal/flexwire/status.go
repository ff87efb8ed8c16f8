package flexwire

import (
	"strconv"
	"strings"

	"flexdx-bridge/internal/domain"
)

// SliceStatus is a decoded "slice <index> key=value ..." payload.
type SliceStatus struct {
	Index int
	Props map[string]string
}

// ParseSlice decodes a slice status payload.
func ParseSlice(payload string) (SliceStatus, error) {
	fields := strings.Fields(payload)
	if len(fields) < 2 || fields[0] != "slice" {
		return SliceStatus{}, &ParseError{Line: payload, Reason: "not a slice status"}
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return SliceStatus{}, &ParseError{Line: payload, Reason: "bad slice index"}
	}
	return SliceStatus{Index: index, Props: parseProps(fields[2:])}, nil
}

// ApplyTo folds the status properties into a slice, leaving unreported
// fields untouched.
func (ss SliceStatus) ApplyTo(sl *domain.RadioSlice) {
	sl.Index = ss.Index
	if v, ok := ss.Props["RF_frequency"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sl.FrequencyMHz = f
		}
	}
	if v, ok := ss.Props["mode"]; ok {
		sl.Mode = domain.Mode(strings.ToUpper(v))
	}
	if v, ok := ss.Props["tx"]; ok {
		sl.TX = v == "1"
	}
	if v, ok := ss.Props["active"]; ok {
		sl.Active = v == "1"
	}
	if v, ok := ss.Props["index_letter"]; ok {
		sl.Letter = v
	}
	if v, ok := ss.Props["xit_on"]; ok {
		sl.XITOn = v == "1"
	}
	if v, ok := ss.Props["xit_freq"]; ok {
		if f, err := strconv.Atoi(v); err == nil {
			sl.XITFreqHz = f
		}
	}
	if v, ok := ss.Props["client_handle"]; ok {
		sl.Station = v
	}
	if v, ok := ss.Props["station"]; ok {
		sl.Station = v
	}
}

// SpotAction is the lifecycle verb of a spot status payload.
type SpotAction int

const (
	SpotUpdated SpotAction = iota
	SpotRemoved
	SpotTriggered
)

// SpotStatus is a decoded "spot <index> ..." payload.
type SpotStatus struct {
	Index  int
	Action SpotAction
	Props  map[string]string
}

// Callsign returns the callsign property, if reported.
func (ss SpotStatus) Callsign() string { return ss.Props["callsign"] }

// ParseSpot decodes a spot status payload. The radio reports
// "spot <index> removed", "spot <index> triggered" and plain
// "spot <index> key=value ..." updates.
func ParseSpot(payload string) (SpotStatus, error) {
	fields := strings.Fields(payload)
	if len(fields) < 2 || fields[0] != "spot" {
		return SpotStatus{}, &ParseError{Line: payload, Reason: "not a spot status"}
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return SpotStatus{}, &ParseError{Line: payload, Reason: "bad spot index"}
	}

	ss := SpotStatus{Index: index, Action: SpotUpdated, Props: map[string]string{}}
	rest := fields[2:]
	if len(rest) > 0 {
		switch rest[0] {
		case "removed":
			ss.Action = SpotRemoved
			rest = rest[1:]
		case "triggered":
			ss.Action = SpotTriggered
			rest = rest[1:]
		}
	}
	ss.Props = parseProps(rest)
	return ss, nil
}

// parseProps splits space-separated key=value fields. Bare words are
// kept as keys with an empty value.
func parseProps(fields []string) map[string]string {
	props := make(map[string]string, len(fields))
	for _, f := range fields {
		if i := strings.IndexByte(f, '='); i >= 0 {
			props[f[:i]] = f[i+1:]
		} else {
			props[f] = ""
		}
	}
	return props
}
