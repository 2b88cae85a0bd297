package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("RiskScoreRoundTrip", func(t *testing.T) {
		result := &domain.RiskScoreResult{
			CustomerID:          "cust-001",
			TotalRiskScore:      35,
			TriggeredRules:      []string{domain.RuleLargeTransaction, domain.RuleHighRiskJurisdiction},
			FlaggedTransactions: []string{"tx-001"},
		}

		err := cache.SetRiskScore(ctx, "cust-001", result, time.Minute)
		if err != nil {
			t.Fatalf("SetRiskScore failed: %v", err)
		}

		retrieved, err := cache.GetRiskScore(ctx, "cust-001")
		if err != nil {
			t.Fatalf("GetRiskScore failed: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected cached result, got nil")
		}

		if retrieved.TotalRiskScore != result.TotalRiskScore {
			t.Errorf("expected score %d, got %d", result.TotalRiskScore, retrieved.TotalRiskScore)
		}
		if len(retrieved.TriggeredRules) != 2 {
			t.Errorf("triggered rules not preserved: %v", retrieved.TriggeredRules)
		}
	})

	t.Run("RiskScoreMiss", func(t *testing.T) {
		result, err := cache.GetRiskScore(ctx, "cust-unknown")
		if err != nil {
			t.Fatalf("GetRiskScore failed: %v", err)
		}
		if result != nil {
			t.Errorf("expected nil for miss, got: %+v", result)
		}
	})

	t.Run("InvalidateRiskScore", func(t *testing.T) {
		result := &domain.RiskScoreResult{CustomerID: "cust-002", TotalRiskScore: 10}
		_ = cache.SetRiskScore(ctx, "cust-002", result, time.Minute)

		if err := cache.InvalidateRiskScore(ctx, "cust-002"); err != nil {
			t.Fatalf("InvalidateRiskScore failed: %v", err)
		}

		retrieved, _ := cache.GetRiskScore(ctx, "cust-002")
		if retrieved != nil {
			t.Error("expected nil after invalidation")
		}
	})

	t.Run("RiskScoreKeyNamespaced", func(t *testing.T) {
		// A plain key equal to a customer ID must not collide with the
		// risk-score entry for that customer.
		_ = cache.Set(ctx, "cust-003", []byte("raw"), time.Minute)
		result, _ := cache.GetRiskScore(ctx, "cust-003")
		if result != nil {
			t.Error("plain key leaked into risk-score namespace")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
