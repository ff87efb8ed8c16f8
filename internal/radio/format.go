package radio

import (
	"fmt"
	"strings"

	"flexdx-bridge/internal/domain"
)

// Display colors, #AARRGGBB. The alpha byte is replaced per spot by the
// opacity rule.
const (
	colorDefault  = "#FFFFFFFF"
	colorDarkened = "#FF909090"
	bgDefault     = "#FF000000"
	bgOwnCall     = "#FFFFFF00"
	colorOwnCall  = "#FF000000"
	bgNewDXCC     = "#FFFF0000"
	bgNewBand     = "#FFFF8C00"
	bgNewBandMode = "#FFB8860B"
	commentMaxLen = 120
	commentFiller = "\x7f"
)

// SpotStyle is the computed display treatment for one enriched spot.
type SpotStyle struct {
	Color      string
	Background string
	Opacity    int // percent, folded into the color's alpha byte
	Priority   int
	Comment    string
}

// StyleSpot evaluates the priority-ordered display rules over a spot's
// enrichment flags. The first matching rule sets colors and priority;
// LoTW inactivity then darkens the text independently, and opacity is
// chosen by the most specific confirmed/worked flag.
func StyleSpot(spot *domain.DxSpot, ownCall string) SpotStyle {
	st := SpotStyle{
		Color:      colorDefault,
		Background: bgDefault,
		Opacity:    100,
		Priority:   5,
	}
	rec := spot.Enrichment

	var notes []string
	switch {
	case ownCall != "" && spot.Call == ownCall:
		st.Color = colorOwnCall
		st.Background = bgOwnCall
		st.Priority = 1
		notes = append(notes, "your call")
	case rec != nil && rec.NewDXCC():
		st.Color = colorDefault
		st.Background = bgNewDXCC
		st.Priority = 2
		notes = append(notes, "new DXCC")
	case rec != nil && rec.NewDXCCOnBand():
		st.Background = bgNewBand
		st.Priority = 3
		notes = append(notes, "new on "+string(spot.Band))
	case rec != nil && rec.NewDXCCOnBandMode():
		st.Background = bgNewBandMode
		st.Priority = 4
		notes = append(notes, fmt.Sprintf("new on %s %s", spot.Band, spot.Mode))
	}

	if rec != nil {
		if rec.Country != "" {
			notes = append(notes, rec.Country)
		}
		if !rec.LoTWMember {
			st.Color = colorDarkened
			notes = append(notes, "LoTW inactive")
		}
		st.Opacity = opacityFor(rec)
	}

	comment := strings.Join(notes, ", ")
	if spot.Message != "" {
		if comment != "" {
			comment += ": "
		}
		comment += spot.Message
	}
	if len(comment) > commentMaxLen {
		comment = comment[:commentMaxLen]
	}
	st.Comment = comment
	return st
}

// opacityFor dims spots the operator has little left to gain from: the
// most specific true confirmed/worked flag wins.
func opacityFor(rec *domain.EnrichmentRecord) int {
	switch {
	case rec.ConfirmedBandMode:
		return 40
	case rec.ConfirmedBand:
		return 55
	case rec.Confirmed:
		return 70
	case rec.WorkedBandMode:
		return 80
	case rec.WorkedBand:
		return 90
	case rec.Worked:
		return 95
	default:
		return 100
	}
}

// withAlpha replaces the alpha byte of an #AARRGGBB color with the
// given opacity percentage.
func withAlpha(color string, opacity int) string {
	if len(color) != 9 || opacity < 0 || opacity > 100 {
		return color
	}
	return fmt.Sprintf("#%02X%s", opacity*255/100, color[3:])
}

// encodeComment substitutes the radio's reserved filler byte for spaces;
// the command syntax is space-delimited and would otherwise split the
// comment.
func encodeComment(s string) string {
	return strings.ReplaceAll(s, " ", commentFiller)
}

// spotAddCommand builds the full spot-add command line for one enriched
// spot.
func (c *Client) spotAddCommand(spot *domain.DxSpot) string {
	st := StyleSpot(spot, c.cfg.StationCall)
	freqMHz := spot.FrequencyMHz()
	return fmt.Sprintf(
		"spot add rx_freq=%.6f tx_freq=%.6f callsign=%s mode=%s color=%s background_color=%s source=%s spotter_callsign=%s timestamp=%d lifetime_seconds=%d priority=%d comment=%s trigger_action=tune",
		freqMHz, freqMHz,
		spot.Call, spot.Mode,
		withAlpha(st.Color, st.Opacity), st.Background,
		c.cfg.SourceName, spot.Spotter,
		spot.Time.Unix(), int(c.cfg.SpotLifetime.Seconds()),
		st.Priority, encodeComment(st.Comment),
	)
}
