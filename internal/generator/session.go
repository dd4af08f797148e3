// internal/generator/session.go
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// sessionTTL is how long an idle plan conversation is kept. Every Put
// refreshes it.
const sessionTTL = 10 * time.Minute

// SessionStore persists plan wizard sessions. Get returns (nil, nil) for
// absent or expired sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*PlanSession, error)
	Put(ctx context.Context, sess *PlanSession) error
}

// --- Redis-backed store ---

const sessionKeyPrefix = "quiz_plan_session:"

// RedisSessionStore keeps plan sessions in Redis with a TTL, so wizard state
// survives a process restart and is shared if several instances ever sit
// behind one balancer.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore connects to Redis at addr and verifies the connection
// with a short ping.
func NewRedisSessionStore(addr string, db int) (*RedisSessionStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisSessionStore{rdb: rdb, ttl: sessionTTL}, nil
}

// Get implements SessionStore.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*PlanSession, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plan session %s: %w", id, err)
	}
	var sess PlanSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode plan session %s: %w", id, err)
	}
	return &sess, nil
}

// Put implements SessionStore, refreshing the TTL.
func (s *RedisSessionStore) Put(ctx context.Context, sess *PlanSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal plan session %s: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write plan session %s: %w", sess.ID, err)
	}
	return nil
}

// --- In-memory store ---

type memEntry struct {
	sess      PlanSession
	expiresAt time.Time
}

// MemorySessionStore is the in-process fallback used when Redis is not
// configured. Expired sessions are swept lazily on access.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	clock   clockwork.Clock
	ttl     time.Duration
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore(clock clockwork.Clock) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memEntry),
		clock:   clock,
		ttl:     sessionTTL,
	}
}

func (s *MemorySessionStore) sweepUnsafe() {
	now := s.clock.Now()
	for id, e := range s.entries {
		if e.expiresAt.Before(now) {
			delete(s.entries, id)
		}
	}
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*PlanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepUnsafe()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	sess := e.sess
	return &sess, nil
}

// Put implements SessionStore, refreshing the TTL.
func (s *MemorySessionStore) Put(_ context.Context, sess *PlanSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepUnsafe()
	s.entries[sess.ID] = memEntry{
		sess:      *sess,
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	return nil
}
