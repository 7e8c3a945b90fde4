package opportunity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/getbeton/accountpulse/internal/domain"
)

// RedisCooldownStore implements CooldownStore on Redis. SET NX EX gives the
// atomicity the gate contract requires; key expiry is the cooldown itself,
// so there is nothing to clean up.
type RedisCooldownStore struct {
	client redis.Cmdable
}

// NewRedisCooldownStore wraps a Redis client.
func NewRedisCooldownStore(client redis.Cmdable) *RedisCooldownStore {
	return &RedisCooldownStore{client: client}
}

func cooldownKey(workspaceID, accountID string, oppType domain.ScoreType) string {
	return fmt.Sprintf("accountpulse:opp:cooldown:%s:%s:%s", workspaceID, accountID, oppType)
}

// Acquire claims the cooldown slot, returning false when it is already held.
func (s *RedisCooldownStore) Acquire(ctx context.Context, workspaceID, accountID string, oppType domain.ScoreType, ttl time.Duration) (bool, error) {
	key := cooldownKey(workspaceID, accountID, oppType)
	ok, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// LocalCooldownStore keeps cooldowns in process memory. Single-instance
// deployments without Redis use it; cooldowns reset on restart.
type LocalCooldownStore struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalCooldownStore returns an empty in-process store.
func NewLocalCooldownStore() *LocalCooldownStore {
	return &LocalCooldownStore{held: map[string]time.Time{}}
}

// Acquire claims the slot unless a live entry holds it.
func (s *LocalCooldownStore) Acquire(_ context.Context, workspaceID, accountID string, oppType domain.ScoreType, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cooldownKey(workspaceID, accountID, oppType)
	now := time.Now()
	if expiry, ok := s.held[key]; ok && expiry.After(now) {
		return false, nil
	}
	s.held[key] = now.Add(ttl)
	return true, nil
}
