package relay

import (
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/domain"
)

// fallbackName is used when a first envelope declares an empty sender.
const fallbackName = "anon"

// Registry maps nicknames to live sessions. It runs the anonymous flow:
// colliding names are suffixed with the next free integer rather than
// rejected. All mutations happen under one mutex.
type Registry struct {
	log   *slog.Logger
	rooms *Directory

	mu    sync.Mutex
	names map[string]*Session
}

func NewRegistry(log *slog.Logger, rooms *Directory) *Registry {
	return &Registry{log: log, rooms: rooms, names: make(map[string]*Session)}
}

// RegisterIfAbsent binds the session to a nickname derived from requested
// and places it in the lobby. Idempotent: a session that already holds a
// name keeps it. Returns the bound name and whether this call did the
// binding.
func (r *Registry) RegisterIfAbsent(s *Session, requested string) (string, bool) {
	if requested == "" {
		requested = fallbackName
	}

	r.mu.Lock()
	if current := s.Nickname(); current != "" {
		r.mu.Unlock()
		return current, false
	}
	bound := requested
	for suffix := 2; ; suffix++ {
		if _, taken := r.names[bound]; !taken {
			break
		}
		bound = fmt.Sprintf("%s%d", requested, suffix)
	}
	r.names[bound] = s
	s.setNickname(bound)
	r.mu.Unlock()

	r.log.Info("session bound", "nickname", bound, "addr", s.RemoteAddr())
	r.rooms.Join(s, domain.Lobby)
	return bound, true
}

// Unbind removes the session from its room (with a leave notice) and frees
// its nickname. A no-op after the first call.
func (r *Registry) Unbind(s *Session) {
	r.mu.Lock()
	nick := s.Nickname()
	if nick == "" || r.names[nick] != s {
		r.mu.Unlock()
		return
	}
	delete(r.names, nick)
	r.mu.Unlock()

	r.rooms.Remove(s)
	s.setNickname("")
	r.log.Info("session unbound", "nickname", nick)
}

// Lookup finds the live session bound to nickname.
func (r *Registry) Lookup(nickname string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.names[nickname]
	return s, ok
}

// CurrentRoom reports where the session sits, defaulting to the lobby.
func (r *Registry) CurrentRoom(s *Session) string {
	return s.Room()
}
