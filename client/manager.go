// Package client owns the resilient connection to the relay: it detects
// transport failures on both the read and write paths, drives reconnection
// with a deterministic capped backoff, replays the identity handshake, and
// buffers user input typed during an outage so nothing is silently lost.
package client

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/wire"
)

// State is the connection lifecycle position:
// Disconnected -> Connecting -> Handshaking -> Active -> (on failure)
// Disconnected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateActive
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

type Config struct {
	Addr     string
	Nickname string

	// Backoff is the deterministic reconnect schedule; the last entry
	// repeats. Defaults to 1s, 2s, 3s, 5s.
	Backoff []time.Duration

	// MaxAttempts bounds consecutive failed reconnects. 0 means retry
	// forever: a human is expected to be present, so the capped schedule
	// is the only brake.
	MaxAttempts int

	// HandshakePause is the settle time between the implicit
	// registration and the room rejoin. Defaults to 200ms.
	HandshakePause time.Duration

	// BufferLimit bounds the pending-input buffer. Defaults to 64 lines.
	BufferLimit int

	DialTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Backoff) == 0 {
		c.Backoff = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second}
	}
	if c.HandshakePause == 0 {
		c.HandshakePause = 200 * time.Millisecond
	}
	if c.BufferLimit == 0 {
		c.BufferLimit = 64
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Manager wraps all traffic of one interactive session. Exactly two tasks
// touch it concurrently: the read loop it spawns and the caller's
// send path. The current socket is only reached through the manager's
// lock, and a generation counter keeps a stale detector from tearing down
// a connection that already got replaced.
type Manager struct {
	cfg Config
	log *slog.Logger

	// dialFunc produces each new socket; tests swap it to wrap the
	// connection with fault injection.
	dialFunc func() (net.Conn, error)

	mu           sync.Mutex
	conn         net.Conn
	gen          int
	state        State
	lastRoom     string
	pending      [][]byte
	reconnecting bool
	closed       bool

	inbound chan domain.Message
	quit    chan struct{}
}

func New(cfg Config, log *slog.Logger) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:     cfg,
		log:     log,
		inbound: make(chan domain.Message, 64),
		quit:    make(chan struct{}),
	}
	m.dialFunc = m.dial
	return m
}

// Start dials the relay and performs the initial handshake. The manager
// only begins its reconnect behavior after one successful session.
func (m *Manager) Start() error {
	conn, err := m.dialFunc()
	if err != nil {
		return err
	}
	return m.establish(conn)
}

// Inbound delivers decoded messages from the relay.
func (m *Manager) Inbound() <-chan domain.Message {
	return m.inbound
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send ships one line of user input. While the connection is down the line
// is queued rather than dropped; queued lines are flushed in original
// order before new input flows again. A write failure queues the same
// frame for exactly one retry after reconnection succeeds.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.ErrSessionClosed
	}
	navigated := m.trackRoom(text)

	frame, err := wire.Encode(domain.NewMessage(m.cfg.Nickname, text))
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if m.state != StateActive {
		// Navigation is already captured in lastRoom and replayed by
		// the handshake rejoin; queueing the line too would join the
		// room twice.
		if navigated {
			m.mu.Unlock()
			return nil
		}
		err := m.enqueueLocked(frame)
		m.mu.Unlock()
		return err
	}
	conn, gen := m.conn, m.gen
	m.mu.Unlock()

	if _, err := conn.Write(frame); err != nil {
		m.log.Warn("write failed, queueing for retry", "error", err)
		if !navigated {
			m.mu.Lock()
			m.pending = append([][]byte{frame}, m.pending...)
			m.mu.Unlock()
		}
		m.connectionLost(gen)
	}
	return nil
}

// Close ends the session for good; no reconnect follows.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = StateDisconnected
	conn := m.conn
	m.mu.Unlock()

	close(m.quit)
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

func (m *Manager) dial() (net.Conn, error) {
	return net.DialTimeout("tcp", m.cfg.Addr, m.cfg.DialTimeout)
}

// establish installs a fresh socket, replays the handshake, flushes any
// input buffered during the outage, and starts the read loop.
func (m *Manager) establish(conn net.Conn) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return errors.ErrSessionClosed
	}
	m.gen++
	gen := m.gen
	m.conn = conn
	m.state = StateHandshaking
	lastRoom := m.lastRoom
	m.mu.Unlock()

	// Implicit registration: the first envelope binds the nickname
	// server-side, whatever its content.
	if err := m.writeText(conn, "/users"); err != nil {
		_ = conn.Close()
		return err
	}
	time.Sleep(m.cfg.HandshakePause)
	if lastRoom != "" && lastRoom != domain.Lobby {
		if err := m.writeText(conn, "/join "+lastRoom); err != nil {
			_ = conn.Close()
			return err
		}
	}
	// Flush until the buffer stays empty while flipping to Active, so a
	// line queued mid-flush cannot jump ahead of the buffered ones or
	// strand in the buffer.
	for {
		if err := m.flushPending(conn); err != nil {
			_ = conn.Close()
			return err
		}
		m.mu.Lock()
		if len(m.pending) == 0 {
			if m.gen == gen {
				m.state = StateActive
				m.reconnecting = false
			}
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()
	}

	go m.readLoop(conn, gen)
	return nil
}

func (m *Manager) writeText(conn net.Conn, text string) error {
	frame, err := wire.Encode(domain.NewMessage(m.cfg.Nickname, text))
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// flushPending replays buffered input in original order. On failure the
// unsent remainder (including the failed frame) stays queued for the next
// successful reconnect.
func (m *Manager) flushPending(conn net.Conn) error {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return nil
		}
		frame := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		if _, err := conn.Write(frame); err != nil {
			m.mu.Lock()
			m.pending = append([][]byte{frame}, m.pending...)
			m.mu.Unlock()
			return err
		}
	}
}

func (m *Manager) enqueueLocked(frame []byte) error {
	if len(m.pending) >= m.cfg.BufferLimit {
		return errors.ErrBufferFull
	}
	m.pending = append(m.pending, frame)
	return nil
}

// trackRoom remembers the last room the user navigated to, so the
// handshake can put them back there. Reports whether the line was a
// room-navigation command. Caller holds m.mu.
func (m *Manager) trackRoom(text string) bool {
	switch {
	case strings.HasPrefix(text, "/join "):
		m.lastRoom = strings.TrimSpace(strings.TrimPrefix(text, "/join "))
	case strings.HasPrefix(text, "/create "):
		m.lastRoom = strings.TrimSpace(strings.TrimPrefix(text, "/create "))
	case strings.TrimSpace(text) == "/leave":
		m.lastRoom = domain.Lobby
	default:
		return false
	}
	return true
}

// readLoop is the inbound task: blocking reads, coalesced-frame splitting,
// decode-and-deliver. A parse failure is logged and the stream continues;
// only socket-level errors count as connection loss.
func (m *Manager) readLoop(conn net.Conn, gen int) {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			m.connectionLost(gen)
			return
		}
		pending = append(pending, buf[:n]...)

		frames, rest := wire.Split(pending)
		for _, frame := range frames {
			msg, err := wire.Decode(frame)
			if err != nil {
				m.log.Warn("dropping malformed frame", "error", err)
				continue
			}
			select {
			case m.inbound <- msg:
			default:
				m.log.Warn("inbound buffer full, dropping message")
			}
		}
		pending = append(pending[:0:0], rest...)
	}
}

// connectionLost is called by both failure detectors. The generation check
// discards stale reports; the reconnecting flag guarantees a single
// reconnect attempt is in flight while the other detector simply waits.
func (m *Manager) connectionLost(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.state = StateDisconnected
	conn := m.conn
	m.mu.Unlock()

	m.log.Warn("connection lost, input will be buffered")
	if conn != nil {
		_ = conn.Close()
	}
	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	for attempt := 1; ; attempt++ {
		delay := m.backoffDelay(attempt)
		m.setState(StateConnecting)
		m.log.Info("reconnect attempt", "attempt", attempt, "in", delay)

		select {
		case <-m.quit:
			return
		case <-time.After(delay):
		}

		conn, err := m.dialFunc()
		if err == nil {
			err = m.establish(conn)
		}
		if err == nil {
			// establish cleared the reconnecting flag before the
			// read loop started.
			m.log.Info("reconnected", "attempts", attempt)
			return
		}

		m.log.Warn("reconnect failed", "attempt", attempt, "error", err)
		if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
			m.log.Error("giving up after max reconnect attempts", "attempts", attempt)
			_ = m.Close()
			return
		}
	}
}

func (m *Manager) backoffDelay(attempt int) time.Duration {
	if attempt > len(m.cfg.Backoff) {
		return m.cfg.Backoff[len(m.cfg.Backoff)-1]
	}
	return m.cfg.Backoff[attempt-1]
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if !m.closed {
		m.state = s
	}
	m.mu.Unlock()
}
