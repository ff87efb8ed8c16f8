package flexwire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flexdx-bridge/internal/domain"
)

func TestParse_Reply(t *testing.T) {
	m, err := Parse("R42|0|3\r\n")
	require.NoError(t, err)
	assert.Equal(t, KindReply, m.Kind)
	assert.Equal(t, 42, m.Seq)
	assert.Equal(t, "0", m.Status)
	assert.Equal(t, "3", m.Data)
}

func TestParse_ReplyWithoutData(t *testing.T) {
	m, err := Parse("R7|0")
	require.NoError(t, err)
	assert.Equal(t, 7, m.Seq)
	assert.Equal(t, "0", m.Status)
	assert.Empty(t, m.Data)
}

func TestParse_ReplyBadSeq(t *testing.T) {
	_, err := Parse("Rxx|0|data")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "Rxx|0|data")
}

func TestParse_Status(t *testing.T) {
	m, err := Parse("S2C73E24|slice 0 RF_frequency=14.200000 mode=USB tx=1")
	require.NoError(t, err)
	assert.Equal(t, KindStatus, m.Kind)
	assert.Equal(t, "2C73E24", m.Handle)
	assert.Equal(t, "slice", m.StatusTopic())
}

func TestParse_HandleVersionMessage(t *testing.T) {
	m, err := Parse("H2C73E24")
	require.NoError(t, err)
	assert.Equal(t, KindHandle, m.Kind)
	assert.Equal(t, "2C73E24", m.Text)

	m, err = Parse("V1.4.0.0")
	require.NoError(t, err)
	assert.Equal(t, KindVersion, m.Kind)

	m, err = Parse("M10000001|Client connected from IP 192.168.1.5")
	require.NoError(t, err)
	assert.Equal(t, KindMessage, m.Kind)
	assert.Equal(t, "Client connected from IP 192.168.1.5", m.Text)
}

func TestParse_UnknownPrefix(t *testing.T) {
	_, err := Parse("X|whatever")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
}

func TestParseSlice(t *testing.T) {
	ss, err := ParseSlice("slice 1 RF_frequency=7.025000 mode=cw tx=0 active=1 index_letter=B xit_on=1 xit_freq=500")
	require.NoError(t, err)
	assert.Equal(t, 1, ss.Index)

	var sl domain.RadioSlice
	ss.ApplyTo(&sl)
	assert.Equal(t, 7.025, sl.FrequencyMHz)
	assert.Equal(t, domain.ModeCW, sl.Mode)
	assert.False(t, sl.TX)
	assert.True(t, sl.Active)
	assert.Equal(t, "B", sl.Letter)
	assert.True(t, sl.XITOn)
	assert.Equal(t, 500, sl.XITFreqHz)
	assert.Equal(t, int64(7_025_000), sl.FrequencyHz())
}

func TestParseSlice_PartialUpdateKeepsFields(t *testing.T) {
	sl := domain.RadioSlice{Index: 0, FrequencyMHz: 14.2, Mode: domain.ModeUSB}
	ss, err := ParseSlice("slice 0 tx=1")
	require.NoError(t, err)
	ss.ApplyTo(&sl)
	assert.Equal(t, 14.2, sl.FrequencyMHz)
	assert.Equal(t, domain.ModeUSB, sl.Mode)
	assert.True(t, sl.TX)
}

func TestParseSpot(t *testing.T) {
	ss, err := ParseSpot("spot 3 callsign=K1ABC rx_freq=14.025000")
	require.NoError(t, err)
	assert.Equal(t, 3, ss.Index)
	assert.Equal(t, SpotUpdated, ss.Action)
	assert.Equal(t, "K1ABC", ss.Callsign())

	ss, err = ParseSpot("spot 3 removed")
	require.NoError(t, err)
	assert.Equal(t, SpotRemoved, ss.Action)

	ss, err = ParseSpot("spot 3 triggered")
	require.NoError(t, err)
	assert.Equal(t, SpotTriggered, ss.Action)
}

func TestParseSpot_Malformed(t *testing.T) {
	_, err := ParseSpot("spot nope removed")
	assert.Error(t, err)
	_, err = ParseSpot("slice 0 tx=1")
	assert.Error(t, err)
}
