package cluster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flexdx-bridge/internal/bandplan"
	"flexdx-bridge/internal/domain"
)

// Announcement grammar:
//
//	DX de <SPOTTER>: <FREQ_KHZ> <CALLSIGN> <FREE TEXT> <HHMM>Z[<GRID>]
//
// The free text is optional and the trailing grid locator may be glued
// to the Z or follow it after spaces.
var spotLine = regexp.MustCompile(
	`^DX de ([A-Za-z0-9/\-#]+):?\s+([0-9]+(?:\.[0-9]+)?)\s+([A-Za-z0-9/]+)\s*(.*?)\s*(\d{4})Z\s*([A-Za-z]{2}[0-9]{2})?\s*$`)

// IsSpotLine reports whether a relay line looks like a spot announcement.
func IsSpotLine(line string) bool {
	return strings.HasPrefix(line, "DX de ")
}

// ParseSpot parses one announcement line into a classified DxSpot. The
// announcement carries only HHMM, so the date comes from now (UTC); a
// time that would land in the future is shifted back one day.
func ParseSpot(line string, now time.Time) (*domain.DxSpot, error) {
	m := spotLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, fmt.Errorf("malformed spot line: %q", line)
	}

	freqKHz, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, fmt.Errorf("malformed spot frequency: %q", line)
	}

	spot := &domain.DxSpot{
		Spotter:      strings.ToUpper(m[1]),
		Call:         strings.ToUpper(m[3]),
		FrequencyKHz: freqKHz,
		Message:      strings.TrimSpace(m[4]),
		Time:         spotTime(m[5], now),
	}
	bandplan.Classify(spot)
	return spot, nil
}

// spotTime combines the announced HHMM with today's UTC date.
func spotTime(hhmm string, now time.Time) time.Time {
	now = now.UTC()
	hour, _ := strconv.Atoi(hhmm[:2])
	minute, _ := strconv.Atoi(hhmm[2:])
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if t.After(now.Add(5 * time.Minute)) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
