// internal/domain/replenishment/guard.go
package replenishment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
)

// Guard serializes auto-order submissions per (client, product-set) key.
// Locks live in process memory with a TTL so a crashed request cannot wedge
// the key forever; the short dedup window is backed by Redis so rapid
// duplicate triggers are collapsed even across instances.
type Guard struct {
	config *config.Config
	logger *logrus.Logger
	redis  *redis.Client

	mu        sync.Mutex
	held      map[string]heldLock
	nextToken uint64
}

// heldLock records who owns a key. The token ties a release func to the
// acquisition that created it, so a late release from a request that outlived
// the TTL cannot evict the lock a later request now holds.
type heldLock struct {
	expiry time.Time
	token  uint64
}

// NewGuard creates a concurrency guard. redisClient may be nil; the dedup
// check then degrades to a no-op.
func NewGuard(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *Guard {
	return &Guard{
		config: cfg,
		logger: logger,
		redis:  redisClient,
		held:   make(map[string]heldLock),
	}
}

// GuardKey builds the deterministic lock key for a client and product set.
// Product order in the request does not change the key.
func GuardKey(clientID uint, productIDs []uint) string {
	ids := make([]uint, len(productIDs))
	copy(ids, productIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("autoorder:client:%d:products:%s", clientID, strings.Join(parts, "-"))
}

// Acquire takes the lock for key, or returns ErrLockHeld when a non-expired
// lock exists. The returned release func is safe to call on every exit path.
func (g *Guard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if lock, ok := g.held[key]; ok {
		if now.Before(lock.expiry) {
			return nil, ErrLockHeld
		}
		// Stale entry from a request that never released; reclaim it.
		delete(g.held, key)
	}

	g.nextToken++
	token := g.nextToken
	g.held[key] = heldLock{
		expiry: now.Add(g.config.Replenishment.LockTTL),
		token:  token,
	}

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		// Only the acquisition that set the entry may remove it. A release
		// arriving after the TTL reclaimed the key must leave the current
		// holder's lock in place.
		if lock, ok := g.held[key]; ok && lock.token == token {
			delete(g.held, key)
		}
	}
	return release, nil
}

// CheckDuplicate records the key in Redis for the dedup window and returns
// ErrDuplicateRequest when the key was already seen inside it. Redis being
// unavailable degrades to allowing the request; the keyed lock still covers
// in-process races.
func (g *Guard) CheckDuplicate(ctx context.Context, key string) error {
	if g.redis == nil {
		return nil
	}

	ok, err := g.redis.SetNX(ctx, "dedup:"+key, 1, g.config.Replenishment.DedupWindow).Result()
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("dedup check unavailable, allowing request: " + err.Error())
		return nil
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}
