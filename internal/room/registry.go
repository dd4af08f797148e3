// internal/room/registry.go
package room

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Registry maps live 6-digit PINs to rooms. It is an explicitly owned store
// rather than a process-wide singleton so tests can construct isolated
// instances.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	clock clockwork.Clock
	rng   *rand.Rand
}

// NewRegistry returns an empty registry. The clock is handed to every room
// it creates.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		clock: clock,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom allocates an unused PIN, constructs a room with the creating
// connection as its immutable host, and stores it. Collisions are effectively
// impossible at 900,000 combinations but are retried, not assumed away.
func (s *Registry) CreateRoom(hostConn uuid.UUID, title string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pin string
	for {
		pin = fmt.Sprintf("%06d", 100000+s.rng.Intn(900000))
		if _, taken := s.rooms[pin]; !taken {
			break
		}
	}

	r := NewRoom(pin, hostConn, title, s.clock)
	r.OnEnd = s.DeleteRoom
	s.rooms[pin] = r
	return r
}

// GetRoom looks up a live room. Absence is a normal outcome (the room never
// existed or already ended), not an error.
func (s *Registry) GetRoom(pin string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[pin]
	return r, ok
}

// DeleteRoom removes a room. Called on explicit host end-of-game and on host
// disconnect, via Room.OnEnd.
func (s *Registry) DeleteRoom(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, pin)
}

// Len reports the number of live rooms.
func (s *Registry) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// DropConnection handles an implicit disconnect: rooms hosted by the
// connection are ended (which also deletes them via OnEnd); rooms where it
// was a player lose that player only.
func (s *Registry) DropConnection(connID uuid.UUID) {
	s.mu.Lock()
	live := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		live = append(live, r)
	}
	s.mu.Unlock()

	for _, r := range live {
		if r.HostConn == connID {
			r.EndGame(connID)
		} else {
			r.RemovePlayer(connID)
		}
	}
}
