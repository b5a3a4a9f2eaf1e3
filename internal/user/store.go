package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a requested profile does not exist.
var ErrNotFound = errors.New("user not found")

// profilesKey is the Redis hash holding user profiles as JSON by user ID.
const profilesKey = "campushub:users"

// ChannelPrefKey is the Redis hash mapping organizer IDs to their preferred
// notification channel. Written on profile save, read by the notification
// worker.
const ChannelPrefKey = "campushub:channelpref"

// Store persists user profiles.
type Store interface {
	Save(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (*User, error)
}

// MemoryStore is a map-backed profile store for dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	prefs map[string]string
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User), prefs: make(map[string]string)}
}

// Save stores the profile and records the organizer channel preference.
func (s *MemoryStore) Save(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if u.Role == RoleOrganizer {
		s.prefs[u.ID] = u.PreferredChannel()
	}
	return nil
}

// Get returns a copy of the profile or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// ChannelPref returns the recorded organizer preference, empty when unset.
func (s *MemoryStore) ChannelPref(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[id]
}

// RedisStore keeps profiles in a Redis hash. Saving an organizer also writes
// the channel-preference hash the notification worker reads.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed profile store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save stores the profile as JSON and updates the organizer channel
// preference in the same pipeline.
func (s *RedisStore) Save(ctx context.Context, u User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, profilesKey, u.ID, payload)
	if u.Role == RoleOrganizer {
		pipe.HSet(ctx, ChannelPrefKey, u.ID, u.PreferredChannel())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Get returns the profile or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*User, error) {
	payload, err := s.client.HGet(ctx, profilesKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// MergeInterests overlays per-request interest overrides on the student's
// stored interests. Overrides win; a nil profile contributes nothing.
func MergeInterests(profile *User, overrides map[string]string) map[string]string {
	merged := make(map[string]string)
	if profile != nil {
		for k, v := range profile.InterestMap() {
			merged[k] = v
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
