// Package cluster maintains a logged-in telnet session to a DX cluster
// relay and emits one event per parsed spot announcement.
package cluster

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/observability"
)

// ErrNotLoggedIn indicates a write was attempted without a logged-in session.
var ErrNotLoggedIn = errors.New("not logged in")

// State of the relay session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingLogin
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingLogin:
		return "awaiting-login"
	case StateLoggedIn:
		return "logged-in"
	default:
		return "disconnected"
	}
}

// StatusEvent reports a session transition to the orchestrator.
type StatusEvent struct {
	Connected bool
	Host      string
	Err       error
}

// Config configures the cluster client.
type Config struct {
	// Primary is the relay host:port. Backup, when set, is tried after a
	// failure on the primary; a failure on the backup reverts to the
	// primary for the attempt after that.
	Primary string
	Backup  string

	// Callsign is written in response to the login prompt.
	Callsign string

	// LoginPrompt is the substring that marks the relay's login prompt.
	// LoginSuccess substrings mark a completed login.
	LoginPrompt  string
	LoginSuccess []string

	// PostLoginCommands are sent once per successful login, one at a
	// time with CommandSettle between them.
	PostLoginCommands []string

	DialTimeout    time.Duration
	LoginTimeout   time.Duration
	ReconnectDelay time.Duration
	CommandSettle  time.Duration
}

// DefaultConfig returns the default cluster client configuration.
func DefaultConfig() Config {
	return Config{
		LoginPrompt:    "login:",
		LoginSuccess:   []string{"Hello", ">"},
		DialTimeout:    10 * time.Second,
		LoginTimeout:   10 * time.Second,
		ReconnectDelay: 30 * time.Second,
		CommandSettle:  1 * time.Second,
	}
}

// Client is the DX cluster telnet client.
type Client struct {
	cfg    Config
	logger *log.Logger

	spots   chan *domain.DxSpot
	notices chan string
	status  chan StatusEvent

	mu    sync.Mutex
	state State
	conn  net.Conn

	writeMu sync.Mutex

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a cluster client. Zero durations in cfg fall back to the
// defaults; Start must be called to begin connecting.
func New(cfg Config, logger *log.Logger) *Client {
	def := DefaultConfig()
	if cfg.LoginPrompt == "" {
		cfg.LoginPrompt = def.LoginPrompt
	}
	if len(cfg.LoginSuccess) == 0 {
		cfg.LoginSuccess = def.LoginSuccess
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = def.LoginTimeout
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.CommandSettle == 0 {
		cfg.CommandSettle = def.CommandSettle
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		spots:   make(chan *domain.DxSpot, 64),
		notices: make(chan string, 64),
		status:  make(chan StatusEvent, 8),
		done:    make(chan struct{}),
	}
}

// Spots returns the channel of parsed spot announcements.
func (c *Client) Spots() <-chan *domain.DxSpot { return c.spots }

// Notices returns non-announcement relay lines received while logged in,
// used to correlate post-login command responses.
func (c *Client) Notices() <-chan string { return c.notices }

// Status returns session transition events.
func (c *Client) Status() <-chan StatusEvent { return c.status }

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the connect loop. Calling Start more than once is a no-op.
func (c *Client) Start() {
	if c.started.Swap(true) {
		return
	}
	c.wg.Add(1)
	go c.run()
}

// Close shuts the client down and waits for its goroutines.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// run is the connect/failover loop. Only one attempt is ever in flight.
// A failure on the primary switches the next attempt to the backup; a
// failure on the backup reverts to the primary. The backup is never
// sticky: it is only ever reached by failing over from the primary.
func (c *Client) run() {
	defer c.wg.Done()

	onBackup := false
	for !c.closed.Load() {
		host := c.cfg.Primary
		if onBackup {
			host = c.cfg.Backup
		}

		err := c.session(host)
		if c.closed.Load() {
			return
		}

		c.setState(StateDisconnected)
		c.emitStatus(StatusEvent{Connected: false, Host: host, Err: err})
		c.logger.Printf("session to %s ended: %v", host, err)

		// Going back to the primary waits the configured delay; the
		// failover hop to the backup is attempted right away.
		if !onBackup && c.cfg.Backup != "" {
			onBackup = true
			continue
		}
		onBackup = false
		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// session dials the relay, performs the login handshake, then reads spot
// lines until the connection fails or the client is closed.
func (c *Client) session(host string) error {
	c.setState(StateConnecting)
	conn, err := net.DialTimeout("tcp", host, c.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return errors.New("closed")
	}
	c.conn = conn
	c.state = StateAwaitingLogin
	c.mu.Unlock()
	defer conn.Close()

	// The login deadline doubles as the read deadline until the relay
	// confirms the login; if it fires first, the session fails.
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.LoginTimeout)); err != nil {
		return err
	}

	var (
		pending   []byte
		loginBuf  strings.Builder
		sentLogin bool
		buf       = make([]byte, 4096)
	)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if c.State() != StateLoggedIn {
				return fmt.Errorf("login to %s failed: %w", host, err)
			}
			return fmt.Errorf("read from %s: %w", host, err)
		}
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimRight(string(pending[:i]), "\r")
			pending = pending[i+1:]
			if c.State() == StateLoggedIn {
				c.handleLine(line)
			}
		}

		if c.State() == StateLoggedIn {
			continue
		}

		// Prompts arrive without a trailing newline, so the handshake
		// scans everything received so far rather than whole lines.
		loginBuf.Write(buf[:n])
		text := loginBuf.String()

		if !sentLogin {
			if strings.Contains(text, c.cfg.LoginPrompt) {
				if err := c.writeLine(c.cfg.Callsign); err != nil {
					return fmt.Errorf("send callsign: %w", err)
				}
				sentLogin = true
				loginBuf.Reset()
			}
			continue
		}

		for _, ok := range c.cfg.LoginSuccess {
			if strings.Contains(text, ok) {
				if err := conn.SetReadDeadline(time.Time{}); err != nil {
					return err
				}
				c.setState(StateLoggedIn)
				c.emitStatus(StatusEvent{Connected: true, Host: host})
				c.logger.Printf("logged in to %s as %s", host, c.cfg.Callsign)
				c.wg.Add(1)
				go c.sendPostLogin()
				break
			}
		}
	}
}

// handleLine routes one logged-in relay line. The relay's ">" prompt is
// written without a newline and glues onto the front of the next line.
func (c *Client) handleLine(line string) {
	line = strings.TrimLeft(line, "> ")
	if line == "" {
		return
	}
	if IsSpotLine(line) {
		spot, err := ParseSpot(line, time.Now())
		if err != nil {
			observability.RecordSpotParseError()
			c.logger.Printf("dropping spot line: %v", err)
			return
		}
		select {
		case c.spots <- spot:
		case <-c.done:
		}
		return
	}
	select {
	case c.notices <- line:
	default:
		// Informational lines are best-effort.
	}
}

// sendPostLogin sends the configured channel-setup commands, one at a
// time with a settle delay, once per successful login.
func (c *Client) sendPostLogin() {
	defer c.wg.Done()
	for _, cmd := range c.cfg.PostLoginCommands {
		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.CommandSettle):
		}
		if err := c.writeLine(cmd); err != nil {
			c.logger.Printf("post-login command %q: %v", cmd, err)
			return
		}
	}
}

// SendSpot submits a spot to the relay: DX <freq> <call> <comment>.
func (c *Client) SendSpot(freqKHz float64, call, comment string) error {
	if c.State() != StateLoggedIn {
		return ErrNotLoggedIn
	}
	return c.writeLine(fmt.Sprintf("DX %.1f %s %s", freqKHz, call, comment))
}

func (c *Client) writeLine(s string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotLoggedIn
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := conn.Write([]byte(s + "\r\n"))
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) emitStatus(ev StatusEvent) {
	select {
	case c.status <- ev:
	default:
		// Status consumers that fall behind miss transitions rather
		// than stalling the session.
	}
}
