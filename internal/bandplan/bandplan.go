// Package bandplan maps frequencies to amateur bands and infers the
// operating mode from the band plan and free-text spot comments.
package bandplan

import (
	"strings"

	"flexdx-bridge/internal/domain"
)

// bandRange is a half-open frequency range [Low, High) in Hz.
type bandRange struct {
	Band domain.Band
	Low  int64
	High int64
}

// IARU region 2 band edges.
var bands = []bandRange{
	{domain.Band160m, 1_800_000, 2_000_000},
	{domain.Band80m, 3_500_000, 4_000_000},
	{domain.Band60m, 5_330_000, 5_410_000},
	{domain.Band40m, 7_000_000, 7_300_000},
	{domain.Band30m, 10_100_000, 10_150_000},
	{domain.Band20m, 14_000_000, 14_350_000},
	{domain.Band17m, 18_068_000, 18_168_000},
	{domain.Band15m, 21_000_000, 21_450_000},
	{domain.Band12m, 24_890_000, 24_990_000},
	{domain.Band10m, 28_000_000, 29_700_000},
	{domain.Band6m, 50_000_000, 54_000_000},
	{domain.Band2m, 144_000_000, 148_000_000},
	{domain.Band70cm, 420_000_000, 450_000_000},
}

// CW-only sub-segments of the band plan.
var cwSegments = []bandRange{
	{domain.Band160m, 1_800_000, 1_840_000},
	{domain.Band80m, 3_500_000, 3_570_000},
	{domain.Band40m, 7_000_000, 7_040_000},
	{domain.Band30m, 10_100_000, 10_130_000},
	{domain.Band20m, 14_000_000, 14_070_000},
	{domain.Band17m, 18_068_000, 18_095_000},
	{domain.Band15m, 21_000_000, 21_070_000},
	{domain.Band12m, 24_890_000, 24_915_000},
	{domain.Band10m, 28_000_000, 28_070_000},
	{domain.Band6m, 50_000_000, 50_100_000},
}

// digiSegment is a known digital sub-segment with the mode commonly
// found there.
type digiSegment struct {
	Mode domain.Mode
	Low  int64
	High int64
}

// Digital watering holes: the FT8 and FT4 dial windows plus the classic
// RTTY/data segments.
var digiSegments = []digiSegment{
	{domain.ModeFT8, 1_840_000, 1_843_000},
	{domain.ModeFT8, 3_573_000, 3_576_000},
	{domain.ModeFT4, 3_575_000, 3_578_000},
	{domain.ModeFT8, 7_074_000, 7_077_000},
	{domain.ModeFT4, 7_047_500, 7_050_500},
	{domain.ModeFT8, 10_136_000, 10_139_000},
	{domain.ModeFT4, 10_140_000, 10_143_000},
	{domain.ModeFT8, 14_074_000, 14_077_000},
	{domain.ModeFT4, 14_080_000, 14_083_000},
	{domain.ModeFT8, 18_100_000, 18_103_000},
	{domain.ModeFT8, 21_074_000, 21_077_000},
	{domain.ModeFT8, 24_915_000, 24_918_000},
	{domain.ModeFT8, 28_074_000, 28_077_000},
	{domain.ModeFT8, 50_313_000, 50_316_000},
	{domain.ModeRTTY, 14_080_000, 14_099_000},
	{domain.ModeRTTY, 21_080_000, 21_100_000},
	{domain.ModeRTTY, 7_040_000, 7_047_000},
	{domain.ModeRTTY, 3_580_000, 3_600_000},
}

// lsbThreshold: voice below 10 MHz is conventionally lower sideband.
const lsbThreshold = 10_000_000

// BandFor maps a frequency in Hz to its amateur band, or BandUnknown if
// it falls outside every defined range.
func BandFor(freqHz int64) domain.Band {
	for _, b := range bands {
		if freqHz >= b.Low && freqHz < b.High {
			return b.Band
		}
	}
	return domain.BandUnknown
}

// Ordered so that the more specific digital hints win over their
// substrings (FT4 before FT8 is irrelevant, but SSB before USB/LSB is not).
var modeHints = []struct {
	Hint string
	Mode domain.Mode
}{
	{"FT8", domain.ModeFT8},
	{"FT4", domain.ModeFT4},
	{"RTTY", domain.ModeRTTY},
	{"PSK", domain.ModeDigital},
	{"JT65", domain.ModeDigital},
	{"DIGI", domain.ModeDigital},
	{"CW", domain.ModeCW},
	{"USB", domain.ModeUSB},
	{"LSB", domain.ModeLSB},
	{"SSB", domain.ModeUnknown}, // sideband picked by frequency below
	{"AM", domain.ModeAM},
	{"FM", domain.ModeFM},
}

// ModeFor infers the operating mode for a spot. An explicit hint in the
// free-text comment wins; otherwise the band-plan segment decides, and
// anything left over is assumed to be voice on the conventional sideband.
func ModeFor(freqHz int64, hint string) domain.Mode {
	upper := strings.ToUpper(hint)
	for _, h := range modeHints {
		if !containsWord(upper, h.Hint) {
			continue
		}
		if h.Mode == domain.ModeUnknown { // "SSB"
			return sidebandFor(freqHz)
		}
		return h.Mode
	}

	for _, s := range cwSegments {
		if freqHz >= s.Low && freqHz < s.High {
			return domain.ModeCW
		}
	}
	for _, s := range digiSegments {
		if freqHz >= s.Low && freqHz < s.High {
			return s.Mode
		}
	}
	return sidebandFor(freqHz)
}

func sidebandFor(freqHz int64) domain.Mode {
	if freqHz < lsbThreshold {
		return domain.ModeLSB
	}
	return domain.ModeUSB
}

// containsWord reports whether s contains w as a standalone token, so
// that a comment like "NEWCOMER" does not read as a CW hint.
func containsWord(s, w string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], w)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(s[i-1])
		afterIdx := i + len(w)
		after := afterIdx >= len(s) || !isAlnum(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// Classify fills the derived Band and Mode fields of a spot.
func Classify(spot *domain.DxSpot) {
	freqHz := spot.FrequencyHz()
	spot.Band = BandFor(freqHz)
	spot.Mode = ModeFor(freqHz, spot.Message)
}
