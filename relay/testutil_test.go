package relay

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/wire"
)

// fakeConn records everything written to it. failWrites simulates a dead
// peer on the write path.
type fakeConn struct {
	mu         sync.Mutex
	written    []byte
	failWrites bool
	closed     bool
}

func (c *fakeConn) Read([]byte) (int, error) { return 0, fmt.Errorf("not readable") }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites || c.closed {
		return 0, fmt.Errorf("broken pipe")
	}
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr { return fakeAddr{} }

func (c *fakeConn) RemoteAddr() net.Addr { return fakeAddr{} }

func (c *fakeConn) SetDeadline(time.Time) error { return nil }

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "fake:0" }

// received decodes every envelope delivered to the fake connection.
func (c *fakeConn) received() []domain.Message {
	c.mu.Lock()
	buf := append([]byte(nil), c.written...)
	c.mu.Unlock()

	frames, _ := wire.Split(buf)
	var messages []domain.Message
	for _, frame := range frames {
		m, err := wire.Decode(frame)
		if err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

func (c *fakeConn) contents() []string {
	var out []string
	for _, m := range c.received() {
		out = append(out, m.Content)
	}
	return out
}

// memHistory is an in-memory HistoryLog for tests.
type memHistory struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newMemHistory() *memHistory {
	return &memHistory{lines: make(map[string][]string)}
}

func (h *memHistory) Append(key, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines[key] = append(h.lines[key], line)
}

func (h *memHistory) Tail(key string, n int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines, ok := h.lines[key]
	if !ok || len(lines) == 0 {
		return contract.NoHistory
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// newTestRelay wires registry, directory, commands and an in-memory history
// the way the server constructor does.
func newTestRelay() (*Registry, *Directory, *Commands, *memHistory) {
	log := slog.Default()
	rooms := NewDirectory(log)
	registry := NewRegistry(log, rooms)
	rooms.onEvict = registry.Unbind
	history := newMemHistory()
	commands := NewCommands(log, registry, rooms, history)
	return registry, rooms, commands, history
}

// bind registers a session under the requested name and returns it with its
// recording connection.
func bind(registry *Registry, requested string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := NewSession(conn)
	registry.RegisterIfAbsent(s, requested)
	return s, conn
}
