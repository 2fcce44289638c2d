package relay

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/wire"
)

// Session is one connected participant: a connection handle owned by its
// handler goroutine, a nickname bound on first inbound envelope, and the
// single room the session currently sits in.
type Session struct {
	ID   uuid.UUID
	conn net.Conn

	// sendMu serializes writers; broadcasts arrive from many handler
	// goroutines at once.
	sendMu sync.Mutex

	mu       sync.Mutex
	nickname string
	room     string
	closed   bool
}

func NewSession(conn net.Conn) *Session {
	return &Session{ID: uuid.New(), conn: conn}
}

// Nickname returns the bound name, or "" while the session is unbound.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

func (s *Session) setNickname(name string) {
	s.mu.Lock()
	s.nickname = name
	s.mu.Unlock()
}

// Room returns the current room, defaulting to the lobby before the first
// placement.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == "" {
		return domain.Lobby
	}
	return s.room
}

func (s *Session) setRoom(room string) {
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
}

// Send encodes and writes one envelope. A transport failure here means the
// peer is gone; callers treat it as that member's disconnect.
func (s *Session) Send(m domain.Message) error {
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.isClosed() {
		return errors.ErrSessionClosed
	}
	_, err = s.conn.Write(frame)
	return err
}

// Close shuts the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already {
		_ = s.conn.Close()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
