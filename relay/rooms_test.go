package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

// membershipCount reports how many rooms hold the session right now.
func membershipCount(rooms *Directory, s *Session) int {
	count := 0
	for _, room := range rooms.Rooms() {
		for _, member := range rooms.Members(room) {
			if member == s {
				count++
			}
		}
	}
	return count
}

func TestDirectory_Session_Is_Always_In_Exactly_One_Room(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	s, _ := bind(registry, "alice")
	req.Equal(1, membershipCount(rooms, s))

	// When the session hops through several rooms
	for _, room := range []string{"go", "rust", "go", domain.Lobby} {
		rooms.Join(s, room)

		// Then at every observation point it belongs to exactly one
		req.Equal(1, membershipCount(rooms, s))
		req.Equal(room, s.Room())
	}
}

func TestDirectory_Members_Keep_Arrival_Order(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	alice, _ := bind(registry, "alice")
	bob, _ := bind(registry, "bob")
	clara, _ := bind(registry, "clara")

	req.Equal([]*Session{alice, bob, clara}, rooms.Members(domain.Lobby))
}

func TestDirectory_Broadcast_Excludes_The_Sender(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	_, aliceConn := bind(registry, "alice")
	bob, bobConn := bind(registry, "bob")

	aliceConn.mu.Lock()
	aliceConn.written = nil
	aliceConn.mu.Unlock()

	// When bob broadcasts to the lobby
	rooms.Broadcast(domain.Lobby, domain.NewMessage("bob", "hello"), bob)

	// Then alice receives it and bob does not
	req.Contains(aliceConn.contents(), "hello")
	req.NotContains(bobConn.contents(), "hello")
}

func TestDirectory_Failed_Member_Is_Evicted_Without_Blocking_Others(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	broken, brokenConn := bind(registry, "broken")
	brokenConn.failWrites = true
	_, healthyConn := bind(registry, "healthy")

	// When a broadcast hits the dead peer
	rooms.Broadcast(domain.Lobby, domain.NewMessage("someone", "hello"), nil)

	// Then the healthy member still got the message
	req.Contains(healthyConn.contents(), "hello")

	// And the dead one was removed everywhere, like a disconnect
	req.NotContains(rooms.Members(domain.Lobby), broken)
	_, found := registry.Lookup("broken")
	req.False(found)
	req.True(brokenConn.closed)
}

func TestDirectory_Empty_Rooms_Persist(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	s, _ := bind(registry, "alice")

	// When the only member of a room leaves it
	rooms.Join(s, "ghost-town")
	rooms.Leave(s)

	// Then the room is still listed, its history association intact
	req.Contains(rooms.Rooms(), "ghost-town")
	req.Empty(rooms.Members("ghost-town"))
}

func TestDirectory_Join_Notifies_Both_Rooms(t *testing.T) {
	req := require.New(t)
	registry, rooms, _, _ := newTestRelay()

	alice, _ := bind(registry, "alice")
	_, lobbyConn := bind(registry, "watcher")
	observer, observerConn := bind(registry, "observer")
	rooms.Join(observer, "go")

	// When alice moves from the lobby into go
	rooms.Join(alice, "go")

	req.Contains(lobbyConn.contents(), "alice left lobby")
	req.Contains(observerConn.contents(), "alice joined go")
}
