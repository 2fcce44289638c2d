package relay

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"chat-relay/domain"
)

// Directory owns room membership. Members are kept in arrival order; every
// read hands out a defensive snapshot so no caller iterates under the lock,
// and no send ever happens while the lock is held.
type Directory struct {
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string][]*Session

	// onEvict runs full session teardown when a broadcast write fails.
	// Wired by the server to Registry.Unbind; nil in directory-only tests.
	onEvict func(*Session)
}

func NewDirectory(log *slog.Logger) *Directory {
	return &Directory{
		log:   log,
		rooms: map[string][]*Session{domain.Lobby: nil},
	}
}

// Join moves the session into room, creating it on first use. The move is
// atomic: under one critical section the session leaves its old room and
// enters the new one. Leave and join notices go out after the lock drops.
func (d *Directory) Join(s *Session, room string) {
	nick := s.Nickname()

	d.mu.Lock()
	previous := ""
	if d.contains(s.Room(), s) {
		previous = s.Room()
		d.removeLocked(previous, s)
	}
	d.rooms[room] = append(d.rooms[room], s)
	s.setRoom(room)
	d.mu.Unlock()

	if previous != "" && previous != room {
		d.Broadcast(previous, domain.ServerNotice(fmt.Sprintf("%s left %s", nick, previous)), s)
	}
	d.Broadcast(room, domain.ServerNotice(fmt.Sprintf("%s joined %s", nick, room)), s)
}

// Leave returns the session to the lobby.
func (d *Directory) Leave(s *Session) {
	d.Join(s, domain.Lobby)
}

// Remove takes the session out of its room entirely (disconnect path) and
// notifies the remaining members. Safe to call for a session that already
// left.
func (d *Directory) Remove(s *Session) {
	nick := s.Nickname()

	d.mu.Lock()
	room := s.Room()
	wasMember := d.contains(room, s)
	if wasMember {
		d.removeLocked(room, s)
	}
	s.setRoom("")
	d.mu.Unlock()

	if wasMember && nick != "" {
		d.Broadcast(room, domain.ServerNotice(fmt.Sprintf("%s left %s", nick, room)), s)
	}
}

// Members returns an arrival-ordered snapshot, safe to iterate without the
// directory's lock.
func (d *Directory) Members(room string) []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.rooms[room]...)
}

// Rooms lists every known room name, sorted. Empty rooms persist by design
// so their history stays reachable.
func (d *Directory) Rooms() []string {
	d.mu.Lock()
	names := lo.Keys(d.rooms)
	d.mu.Unlock()
	sort.Strings(names)
	return names
}

// Broadcast delivers m to every current member of room except exclude. A
// failed write never blocks delivery to the others; the failed member is
// evicted as a disconnect.
func (d *Directory) Broadcast(room string, m domain.Message, exclude *Session) {
	var failed []*Session
	for _, member := range d.Members(room) {
		if member == exclude {
			continue
		}
		if err := member.Send(m); err != nil {
			d.log.Warn("send failed, evicting member",
				"room", room, "nickname", member.Nickname(), "error", err)
			failed = append(failed, member)
		}
	}
	for _, member := range failed {
		d.evict(member)
	}
}

func (d *Directory) evict(s *Session) {
	s.Close()
	if d.onEvict != nil {
		d.onEvict(s)
		return
	}
	d.Remove(s)
}

// contains and removeLocked expect d.mu to be held.
func (d *Directory) contains(room string, s *Session) bool {
	return lo.Contains(d.rooms[room], s)
}

func (d *Directory) removeLocked(room string, s *Session) {
	d.rooms[room] = lo.Without(d.rooms[room], s)
}
