package replenishment_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/medsupply-backend/internal/domain/replenishment"
)

func TestGuardKeyIgnoresProductOrder(t *testing.T) {
	a := replenishment.GuardKey(7, []uint{3, 1, 2})
	b := replenishment.GuardKey(7, []uint{2, 3, 1})
	if a != b {
		t.Fatalf("keys differ for same product set: %q vs %q", a, b)
	}
	if a != "autoorder:client:7:products:1-2-3" {
		t.Fatalf("key = %q", a)
	}

	other := replenishment.GuardKey(8, []uint{1, 2, 3})
	if a == other {
		t.Fatal("different clients share a key")
	}
}

func TestGuardAcquireAndRelease(t *testing.T) {
	guard := replenishment.NewGuard(testConfig(), testLogger(), nil)
	key := replenishment.GuardKey(1, []uint{1, 2})

	release, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := guard.Acquire(key); !errors.Is(err, replenishment.ErrLockHeld) {
		t.Fatalf("second Acquire err = %v, want ErrLockHeld", err)
	}

	// A different product set is an independent key
	if rel, err := guard.Acquire(replenishment.GuardKey(1, []uint{9})); err != nil {
		t.Fatalf("disjoint Acquire: %v", err)
	} else {
		rel()
	}

	release()
	rel, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	rel()
}

func TestGuardReclaimsExpiredLock(t *testing.T) {
	cfg := testConfig()
	cfg.Replenishment.LockTTL = 10 * time.Millisecond
	guard := replenishment.NewGuard(cfg, testLogger(), nil)
	key := replenishment.GuardKey(1, []uint{1})

	// Never released, as after a crashed request
	if _, err := guard.Acquire(key); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	release, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire after TTL: %v", err)
	}
	release()
}

func TestGuardStaleReleaseKeepsCurrentHolder(t *testing.T) {
	cfg := testConfig()
	cfg.Replenishment.LockTTL = 10 * time.Millisecond
	guard := replenishment.NewGuard(cfg, testLogger(), nil)
	key := replenishment.GuardKey(1, []uint{1, 2})

	staleRelease, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// The first holder outlives its TTL and the key is reclaimed
	time.Sleep(20 * time.Millisecond)
	release, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire after TTL: %v", err)
	}

	// The expired holder's late release must not evict the live lock
	staleRelease()
	if _, err := guard.Acquire(key); !errors.Is(err, replenishment.ErrLockHeld) {
		t.Fatalf("Acquire after stale release err = %v, want ErrLockHeld", err)
	}

	release()
	rel, err := guard.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire after owner release: %v", err)
	}
	rel()
}

func TestGuardConcurrentAcquireSingleWinner(t *testing.T) {
	guard := replenishment.NewGuard(testConfig(), testLogger(), nil)
	key := replenishment.GuardKey(1, []uint{1, 2, 3})

	var wg sync.WaitGroup
	var wins int32
	releases := make(chan func(), 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, err := guard.Acquire(key); err == nil {
				atomic.AddInt32(&wins, 1)
				releases <- release
			}
		}()
	}
	wg.Wait()
	close(releases)

	if wins != 1 {
		t.Fatalf("%d concurrent acquires won, want exactly 1", wins)
	}
	for release := range releases {
		release()
	}
}

func TestCheckDuplicateWithoutRedis(t *testing.T) {
	guard := replenishment.NewGuard(testConfig(), testLogger(), nil)
	if err := guard.CheckDuplicate(context.Background(), "dedup-key"); err != nil {
		t.Fatalf("CheckDuplicate without redis: %v", err)
	}
}

func TestCheckDuplicateRejectsInsideWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	guard := replenishment.NewGuard(cfg, testLogger(), rdb)
	key := replenishment.GuardKey(3, []uint{1, 2})
	ctx := context.Background()

	if err := guard.CheckDuplicate(ctx, key); err != nil {
		t.Fatalf("first CheckDuplicate: %v", err)
	}
	if err := guard.CheckDuplicate(ctx, key); !errors.Is(err, replenishment.ErrDuplicateRequest) {
		t.Fatalf("second CheckDuplicate err = %v, want ErrDuplicateRequest", err)
	}

	// A different key is unaffected by the window
	if err := guard.CheckDuplicate(ctx, replenishment.GuardKey(4, []uint{1, 2})); err != nil {
		t.Fatalf("disjoint CheckDuplicate: %v", err)
	}

	// Once the window passes the key may fire again
	mr.FastForward(cfg.Replenishment.DedupWindow + time.Second)
	if err := guard.CheckDuplicate(ctx, key); err != nil {
		t.Fatalf("CheckDuplicate after window: %v", err)
	}
}
