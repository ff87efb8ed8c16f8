// Package radio owns the TCP control session to the radio: it serializes
// outgoing commands with reply correlation, mirrors the radio's slice and
// spot state from asynchronous status lines, and reconciles tuning
// requests against the radio's own reports.
package radio

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/flexwire"
	"flexdx-bridge/internal/observability"
)

var (
	// ErrNotConnected indicates a command was issued without a live session.
	ErrNotConnected = errors.New("not connected")
	// ErrTimeout indicates a command's reply deadline expired.
	ErrTimeout = errors.New("command timed out")
	// ErrDisconnected indicates the session dropped while the command was
	// pending.
	ErrDisconnected = errors.New("disconnected")
)

// maxSeq is the wrap point for command sequence numbers.
const maxSeq = 99999

// ReplyHandler receives a command's outcome: the reply's status and data
// fields, or a non-nil error for timeout/disconnect/not-connected.
type ReplyHandler func(status, data string, err error)

// Config configures the radio client.
type Config struct {
	// Addr is the radio's control host:port.
	Addr string

	// SourceName tags spots pushed to the radio's display. StationCall
	// is the operator's own callsign, used by the spot styling rules.
	SourceName  string
	StationCall string

	DialTimeout     time.Duration
	ConnectSettle   time.Duration
	CommandDeadline time.Duration
	CommandSpacing  time.Duration
	ReconnectDelay  time.Duration
	QsyDeadline     time.Duration
	SweepInterval   time.Duration
	SpotLifetime    time.Duration
}

// DefaultConfig returns the default radio client configuration.
func DefaultConfig() Config {
	return Config{
		SourceName:      "flexdx-bridge",
		DialTimeout:     10 * time.Second,
		ConnectSettle:   500 * time.Millisecond,
		CommandDeadline: 15 * time.Second,
		CommandSpacing:  200 * time.Millisecond,
		ReconnectDelay:  5 * time.Second,
		QsyDeadline:     3 * time.Second,
		SweepInterval:   60 * time.Second,
		SpotLifetime:    time.Hour,
	}
}

// subscribeCommands is the fixed post-connect sequence; the session is
// reported connected only after the last one is acknowledged.
var subscribeCommands = []string{
	"sub slice all",
	"sub client all",
	"spot clear",
	"sub spot all",
}

type queuedCommand struct {
	cmd  string
	done ReplyHandler
}

type pendingCommand struct {
	seq   int
	done  ReplyHandler
	timer *time.Timer
}

// Client is the radio control client.
type Client struct {
	cfg    Config
	logger *log.Logger

	events chan domain.Event

	mu        sync.Mutex
	conn      net.Conn
	seq       int
	queue     []queuedCommand
	pending   map[int]*pendingCommand
	inFlight  bool
	reconnect bool

	handle  string
	version string

	slices   map[int]*domain.RadioSlice
	stations map[string]string

	spotsByRadioID map[int]*domain.RadioSpot
	spotsBySpotID  map[string]*domain.RadioSpot

	qsy *pendingQsy

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a radio client. Zero values in cfg fall back to the
// defaults; Start must be called to begin connecting.
func New(cfg Config, logger *log.Logger) *Client {
	def := DefaultConfig()
	if cfg.SourceName == "" {
		cfg.SourceName = def.SourceName
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ConnectSettle == 0 {
		cfg.ConnectSettle = def.ConnectSettle
	}
	if cfg.CommandDeadline == 0 {
		cfg.CommandDeadline = def.CommandDeadline
	}
	if cfg.CommandSpacing == 0 {
		cfg.CommandSpacing = def.CommandSpacing
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.QsyDeadline == 0 {
		cfg.QsyDeadline = def.QsyDeadline
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.SpotLifetime == 0 {
		cfg.SpotLifetime = def.SpotLifetime
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		cfg:            cfg,
		logger:         logger,
		events:         make(chan domain.Event, 64),
		pending:        make(map[int]*pendingCommand),
		slices:         make(map[int]*domain.RadioSlice),
		stations:       make(map[string]string),
		spotsByRadioID: make(map[int]*domain.RadioSpot),
		spotsBySpotID:  make(map[string]*domain.RadioSpot),
		done:           make(chan struct{}),
	}
}

// Events returns the channel of radio events: connection transitions,
// slice updates and operator-triggered spots.
func (c *Client) Events() <-chan domain.Event { return c.events }

// Start launches the initial connection attempt and the expiration
// sweep. Calling Start more than once is a no-op.
func (c *Client) Start() {
	if c.started.Swap(true) {
		return
	}
	c.wg.Add(1)
	go c.sweepLoop()
	go c.connect()
}

// Close tears the session down and waits for the client's goroutines.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	if c.qsy != nil {
		c.qsy.timer.Stop()
		c.qsy = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// Slices returns a snapshot of the known slices.
func (c *Client) Slices() []domain.RadioSlice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.RadioSlice, 0, len(c.slices))
	for _, sl := range c.slices {
		out = append(out, *sl)
	}
	return out
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// connect dials the radio and, after a settle delay, issues the
// subscription sequence. A failed dial arms the reconnect timer.
func (c *Client) connect() {
	conn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
	if err != nil {
		c.logger.Printf("dial %s: %v", c.cfg.Addr, err)
		c.emit(domain.Event{Type: domain.EventRadioError, Time: time.Now(), Error: err.Error()})
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)

	select {
	case <-c.done:
		return
	case <-time.After(c.cfg.ConnectSettle):
	}

	last := len(subscribeCommands) - 1
	for i, cmd := range subscribeCommands {
		if i == last {
			c.Send(cmd, func(status, data string, err error) {
				if err != nil {
					c.logger.Printf("subscribe %q: %v", cmd, err)
					return
				}
				c.emit(domain.Event{Type: domain.EventRadioConnected, Time: time.Now()})
				c.logger.Printf("connected to radio at %s", c.cfg.Addr)
			})
			continue
		}
		c.Send(cmd, nil)
	}
}

// scheduleReconnect arms exactly one reconnect attempt; it is a no-op
// while one is already pending.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnect || c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.reconnect = true
	c.mu.Unlock()

	time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = false
		c.mu.Unlock()
		if !c.closed.Load() {
			c.connect()
		}
	})
}

// Send enqueues a command for sequential dispatch. A command issued
// without a live session fails immediately with ErrNotConnected.
func (c *Client) Send(cmd string, done ReplyHandler) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		if done != nil {
			done("", "", ErrNotConnected)
		}
		return
	}
	c.queue = append(c.queue, queuedCommand{cmd: cmd, done: done})
	c.pumpLocked()
	c.mu.Unlock()
}

// pumpLocked sends the next queued command if none is in flight. The
// caller holds c.mu.
func (c *Client) pumpLocked() {
	if c.inFlight || len(c.queue) == 0 || c.conn == nil {
		return
	}
	q := c.queue[0]
	c.queue = c.queue[1:]

	c.seq++
	if c.seq > maxSeq {
		c.seq = 1
	}
	seq := c.seq

	pc := &pendingCommand{seq: seq, done: q.done}
	pc.timer = time.AfterFunc(c.cfg.CommandDeadline, func() { c.expire(seq) })
	c.pending[seq] = pc
	c.inFlight = true

	conn := c.conn
	line := fmt.Sprintf("C%d|%s\r\n", seq, q.cmd)
	go func() {
		if _, err := conn.Write([]byte(line)); err != nil {
			// The read loop observes the broken socket and fails the
			// pending command with the rest.
			c.logger.Printf("write: %v", err)
		}
	}()
}

// spaceThenPump re-arms the dispatch pump after the inter-command delay.
func (c *Client) spaceThenPump() {
	time.AfterFunc(c.cfg.CommandSpacing, func() {
		c.mu.Lock()
		c.pumpLocked()
		c.mu.Unlock()
	})
}

// expire fails a pending command whose reply deadline passed.
func (c *Client) expire(seq int) {
	c.mu.Lock()
	pc, ok := c.pending[seq]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, seq)
	c.inFlight = false
	c.mu.Unlock()

	observability.RecordCommand(true)
	c.logger.Printf("command %d timed out", seq)
	if pc.done != nil {
		pc.done("", "", ErrTimeout)
	}
	c.spaceThenPump()
}

// readLoop consumes protocol lines until the socket fails.
func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := flexwire.Parse(line)
		if err != nil {
			c.logger.Printf("dropping line: %v", err)
			continue
		}
		c.dispatch(m)
	}
	c.handleDisconnect(conn, sc.Err())
}

// dispatch routes one decoded protocol message.
func (c *Client) dispatch(m flexwire.Message) {
	switch m.Kind {
	case flexwire.KindReply:
		c.handleReply(m)
	case flexwire.KindStatus:
		c.handleStatus(m)
	case flexwire.KindHandle:
		c.mu.Lock()
		c.handle = m.Text
		c.mu.Unlock()
	case flexwire.KindVersion:
		c.mu.Lock()
		c.version = m.Text
		c.mu.Unlock()
	case flexwire.KindMessage:
		c.logger.Printf("radio: %s", m.Text)
	}
}

// handleReply correlates a reply with its pending command. Replies for
// unknown or already-expired sequence numbers are logged and ignored.
func (c *Client) handleReply(m flexwire.Message) {
	c.mu.Lock()
	pc, ok := c.pending[m.Seq]
	if !ok {
		c.mu.Unlock()
		c.logger.Printf("reply for unknown sequence %d", m.Seq)
		return
	}
	delete(c.pending, m.Seq)
	pc.timer.Stop()
	c.inFlight = false
	c.mu.Unlock()

	observability.RecordCommand(false)
	if pc.done != nil {
		pc.done(m.Status, m.Data, nil)
	}
	c.spaceThenPump()
}

// handleStatus routes a status line by its first word.
func (c *Client) handleStatus(m flexwire.Message) {
	switch m.StatusTopic() {
	case "slice":
		ss, err := flexwire.ParseSlice(m.Payload)
		if err != nil {
			c.logger.Printf("dropping slice status: %v", err)
			return
		}
		c.handleSliceStatus(ss)
	case "spot":
		ss, err := flexwire.ParseSpot(m.Payload)
		if err != nil {
			c.logger.Printf("dropping spot status: %v", err)
			return
		}
		c.handleSpotStatus(ss)
	case "client":
		c.handleClientStatus(m.Payload)
	default:
		// Other status topics carry nothing this client tracks.
	}
}

// handleSliceStatus folds a slice report into local state, then runs it
// through the QSY reconciliation filter before forwarding.
func (c *Client) handleSliceStatus(ss flexwire.SliceStatus) {
	c.mu.Lock()
	sl, ok := c.slices[ss.Index]
	if !ok {
		sl = &domain.RadioSlice{Index: ss.Index}
		c.slices[ss.Index] = sl
	}
	ss.ApplyTo(sl)
	if st, ok := c.stations[sl.Station]; ok {
		sl.Station = st
	}
	forward := c.filterQsyLocked(sl)
	snapshot := *sl
	c.mu.Unlock()

	if forward {
		c.emit(domain.Event{Type: domain.EventSliceUpdated, Time: time.Now(), Slice: &snapshot})
	}
}

// handleClientStatus tracks which station owns each client handle:
// "client <handle> connected ... station=<name>".
func (c *Client) handleClientStatus(payload string) {
	fields := strings.Fields(payload)
	if len(fields) < 2 {
		return
	}
	handle := strings.TrimPrefix(fields[1], "0x")
	for _, f := range fields[2:] {
		if v, ok := strings.CutPrefix(f, "station="); ok {
			c.mu.Lock()
			c.stations[handle] = v
			c.mu.Unlock()
			return
		}
		if f == "disconnected" {
			c.mu.Lock()
			delete(c.stations, handle)
			c.mu.Unlock()
			return
		}
	}
}

// handleDisconnect reacts to a broken socket: every pending command
// fails with ErrDisconnected, the queue is dropped, and one reconnect
// attempt is armed. An intentional Close does none of this.
func (c *Client) handleDisconnect(conn net.Conn, err error) {
	conn.Close()
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	failed := make([]*pendingCommand, 0, len(c.pending))
	for seq, pc := range c.pending {
		pc.timer.Stop()
		failed = append(failed, pc)
		delete(c.pending, seq)
	}
	c.queue = nil
	c.inFlight = false
	if c.qsy != nil {
		c.qsy.timer.Stop()
		c.qsy = nil
	}
	c.mu.Unlock()

	for _, pc := range failed {
		if pc.done != nil {
			pc.done("", "", ErrDisconnected)
		}
	}

	c.logger.Printf("radio session lost: %v", err)
	c.emit(domain.Event{Type: domain.EventRadioDisconnected, Time: time.Now()})
	c.scheduleReconnect()
}

func (c *Client) emit(ev domain.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
