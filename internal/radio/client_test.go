package radio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flexdx-bridge/internal/domain"
)

// fakeRadio is a scripted control endpoint: tests read the commands the
// client sends and write replies and status lines back.
type fakeRadio struct {
	ln    net.Listener
	mu    sync.Mutex
	conn  net.Conn
	lines chan string
	ready chan struct{}
}

func newFakeRadio(t *testing.T) *fakeRadio {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeRadio{
		ln:    ln,
		lines: make(chan string, 64),
		ready: make(chan struct{}),
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		close(f.ready)

		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			f.lines <- strings.TrimRight(sc.Text(), "\r")
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRadio) addr() string { return f.ln.Addr().String() }

func (f *fakeRadio) send(t *testing.T, line string) {
	t.Helper()
	select {
	case <-f.ready:
	case <-time.After(3 * time.Second):
		t.Fatal("client never connected")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := io.WriteString(f.conn, line+"\r\n")
	require.NoError(t, err)
}

func (f *fakeRadio) dropConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
	}
}

// expectCommand reads the next C<seq>|<cmd> line.
func (f *fakeRadio) expectCommand(t *testing.T) (seq int, cmd string) {
	t.Helper()
	select {
	case line := <-f.lines:
		require.True(t, strings.HasPrefix(line, "C"), "not a command: %q", line)
		i := strings.IndexByte(line, '|')
		require.Positive(t, i)
		seq, err := strconv.Atoi(line[1:i])
		require.NoError(t, err)
		return seq, line[i+1:]
	case <-time.After(3 * time.Second):
		t.Fatal("no command from client")
		return 0, ""
	}
}

func (f *fakeRadio) reply(t *testing.T, seq int, status, data string) {
	t.Helper()
	if data == "" {
		f.send(t, fmt.Sprintf("R%d|%s", seq, status))
		return
	}
	f.send(t, fmt.Sprintf("R%d|%s|%s", seq, status, data))
}

func testRadioConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.StationCall = "W1XYZ"
	cfg.ConnectSettle = 10 * time.Millisecond
	cfg.CommandSpacing = time.Millisecond
	cfg.ReconnectDelay = time.Hour
	return cfg
}

// handshake acknowledges the subscription sequence and waits for the
// connected event.
func handshake(t *testing.T, f *fakeRadio, c *Client) {
	t.Helper()
	for _, want := range []string{"sub slice all", "sub client all", "spot clear", "sub spot all"} {
		seq, cmd := f.expectCommand(t)
		require.Equal(t, want, cmd)
		f.reply(t, seq, "0", "")
	}
	waitEvent(t, c, domain.EventRadioConnected)
}

func waitEvent(t *testing.T, c *Client, typ domain.EventType) domain.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func expectNoEvent(t *testing.T, c *Client, typ domain.EventType, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == typ {
				t.Fatalf("unexpected %s event: %+v", typ, ev)
			}
		case <-deadline:
			return
		}
	}
}

func startClient(t *testing.T, cfg Config) (*fakeRadio, *Client) {
	t.Helper()
	f := newFakeRadio(t)
	cfg.Addr = f.addr()
	c := New(cfg, log.New(io.Discard, "", 0))
	c.Start()
	t.Cleanup(func() { c.Close() })
	handshake(t, f, c)
	return f, c
}

func TestClient_SubscribesThenSignalsConnected(t *testing.T) {
	_, c := startClient(t, testRadioConfig(""))
	assert.True(t, c.Connected())
}

func TestClient_ReplyCorrelation(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	got := make(chan string, 1)
	c.Send("info", func(status, data string, err error) {
		require.NoError(t, err)
		got <- status + "|" + data
	})

	seq, cmd := f.expectCommand(t)
	assert.Equal(t, "info", cmd)
	f.reply(t, seq, "0", "model=FLEX-6400")

	select {
	case s := <-got:
		assert.Equal(t, "0|model=FLEX-6400", s)
	case <-time.After(3 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestClient_SequentialDispatch(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	c.Send("first", nil)
	c.Send("second", nil)

	seq1, cmd := f.expectCommand(t)
	assert.Equal(t, "first", cmd)

	// The second command is held until the first reply arrives.
	select {
	case line := <-f.lines:
		t.Fatalf("second command sent early: %q", line)
	case <-time.After(100 * time.Millisecond):
	}

	f.reply(t, seq1, "0", "")
	seq2, cmd := f.expectCommand(t)
	assert.Equal(t, "second", cmd)
	assert.Equal(t, seq1+1, seq2)
}

func TestClient_CommandTimeout(t *testing.T) {
	cfg := testRadioConfig("")
	cfg.CommandDeadline = 50 * time.Millisecond
	f, c := startClient(t, cfg)

	got := make(chan error, 1)
	c.Send("never answered", func(status, data string, err error) { got <- err })
	f.expectCommand(t)

	select {
	case err := <-got:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := New(testRadioConfig("127.0.0.1:1"), log.New(io.Discard, "", 0))

	got := make(chan error, 1)
	c.Send("info", func(status, data string, err error) { got <- err })
	assert.ErrorIs(t, <-got, ErrNotConnected)

	assert.ErrorIs(t, c.SetFrequency(14_025_000, domain.ModeCW), ErrNotConnected)
}

func TestClient_DisconnectFailsPending(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	got := make(chan error, 1)
	c.Send("doomed", func(status, data string, err error) { got <- err })
	f.expectCommand(t)

	f.dropConn()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(3 * time.Second):
		t.Fatal("pending command never failed")
	}
	waitEvent(t, c, domain.EventRadioDisconnected)
}

func TestClient_SliceStatusUpdatesState(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	f.send(t, "S2C73E24|slice 0 RF_frequency=14.200000 mode=USB tx=1 active=1 index_letter=A")
	ev := waitEvent(t, c, domain.EventSliceUpdated)
	require.NotNil(t, ev.Slice)
	assert.Equal(t, 14.2, ev.Slice.FrequencyMHz)
	assert.Equal(t, domain.ModeUSB, ev.Slice.Mode)
	assert.True(t, ev.Slice.TX)

	slices := c.Slices()
	require.Len(t, slices, 1)
	assert.Equal(t, "A", slices[0].Letter)
}

func TestClient_SpotPushAndReAdd(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	spot := &domain.DxSpot{
		Spotter:      "W3LPL",
		Call:         "K1JT",
		FrequencyKHz: 14025.0,
		Band:         domain.Band20m,
		Mode:         domain.ModeCW,
		Time:         time.Now(),
	}

	c.PushSpot(spot)
	seq, cmd := f.expectCommand(t)
	assert.Contains(t, cmd, "spot add ")
	assert.Contains(t, cmd, "callsign=K1JT")
	f.reply(t, seq, "0", "42")

	// The radio id from the reply keys the re-add: same spot id again
	// removes the stale entry before adding.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.spotsByRadioID[42]
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	c.PushSpot(spot)
	seq, cmd = f.expectCommand(t)
	assert.Equal(t, "spot remove 42", cmd)
	f.reply(t, seq, "0", "")

	seq, cmd = f.expectCommand(t)
	assert.Contains(t, cmd, "spot add ")
	f.reply(t, seq, "0", "43")
}

func TestClient_SpotTriggeredSurfacesCallsign(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	f.send(t, "S2C73E24|spot 7 triggered callsign=K1JT")
	ev := waitEvent(t, c, domain.EventSpotTriggered)
	assert.Equal(t, "K1JT", ev.Callsign)
}

func TestClient_QsySuppressesIntermediateState(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	f.send(t, "S2C73E24|slice 0 RF_frequency=14.000000 mode=USB tx=1")
	waitEvent(t, c, domain.EventSliceUpdated)

	require.NoError(t, c.SetFrequency(14_025_000, domain.ModeCW))
	for _, want := range []string{"slice tune 0 14.025000", "slice set 0 mode=CW", "sub slice all"} {
		seq, cmd := f.expectCommand(t)
		assert.Equal(t, want, cmd)
		f.reply(t, seq, "0", "")
	}

	// Frequency reached but mode still switching: suppressed.
	f.send(t, "S2C73E24|slice 0 RF_frequency=14.025000 mode=USB")
	expectNoEvent(t, c, domain.EventSliceUpdated, 150*time.Millisecond)

	// Full match: exactly one update is forwarded.
	f.send(t, "S2C73E24|slice 0 RF_frequency=14.025000 mode=CW")
	ev := waitEvent(t, c, domain.EventSliceUpdated)
	assert.Equal(t, domain.ModeCW, ev.Slice.Mode)
	assert.Equal(t, int64(14_025_000), ev.Slice.FrequencyHz())
	expectNoEvent(t, c, domain.EventSliceUpdated, 150*time.Millisecond)
}

func TestClient_QsyDeadlineSynthesizesUpdate(t *testing.T) {
	cfg := testRadioConfig("")
	cfg.QsyDeadline = 80 * time.Millisecond
	f, c := startClient(t, cfg)

	f.send(t, "S2C73E24|slice 0 RF_frequency=14.000000 mode=USB tx=1")
	waitEvent(t, c, domain.EventSliceUpdated)

	require.NoError(t, c.SetFrequency(7_025_000, domain.ModeCW))

	// The radio never echoes the tune; the deadline forces an update
	// carrying the requested target.
	ev := waitEvent(t, c, domain.EventSliceUpdated)
	assert.Equal(t, int64(7_025_000), ev.Slice.FrequencyHz())
	assert.Equal(t, domain.ModeCW, ev.Slice.Mode)
}

func TestClient_QsySupersedePriorPending(t *testing.T) {
	cfg := testRadioConfig("")
	cfg.QsyDeadline = 80 * time.Millisecond
	_, c := startClient(t, cfg)

	c.mu.Lock()
	c.slices[0] = &domain.RadioSlice{Index: 0, FrequencyMHz: 14.0, Mode: domain.ModeUSB, TX: true}
	c.mu.Unlock()

	require.NoError(t, c.SetFrequency(7_025_000, domain.ModeCW))
	require.NoError(t, c.SetFrequency(10_105_000, domain.ModeCW))

	// Only the second request's deadline is armed: one synthetic update,
	// carrying the second target.
	ev := waitEvent(t, c, domain.EventSliceUpdated)
	assert.Equal(t, int64(10_105_000), ev.Slice.FrequencyHz())
	expectNoEvent(t, c, domain.EventSliceUpdated, 150*time.Millisecond)
}

func TestClient_QsyNoopWhenAlreadyOnTarget(t *testing.T) {
	f, c := startClient(t, testRadioConfig(""))

	f.send(t, "S2C73E24|slice 0 RF_frequency=14.025000 mode=CW tx=1")
	waitEvent(t, c, domain.EventSliceUpdated)

	require.NoError(t, c.SetFrequency(14_025_000, domain.ModeCW))
	select {
	case line := <-f.lines:
		t.Fatalf("unexpected command %q for a no-op tune", line)
	case <-time.After(100 * time.Millisecond):
	}
}
