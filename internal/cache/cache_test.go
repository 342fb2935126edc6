package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/churnguard/internal/domain"
)

func sampleResult() *domain.ScoringResult {
	return &domain.ScoringResult{
		Probability:  0.83,
		Tier:         domain.RiskHigh,
		Action:       "Immediate retention action required.",
		Decision:     1,
		Threshold:    0.42,
		ModelName:    "churn_deployment",
		ModelVersion: "v1",
	}
}

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

		if err := cache.Delete(ctx, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Fatal("expected value before expiry")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiry")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		small := NewLRUCache(2)
		_ = small.Set(ctx, "a", []byte("1"), time.Minute)
		_ = small.Set(ctx, "b", []byte("2"), time.Minute)

		// touch a so b becomes least recently used
		_, _ = small.Get(ctx, "a")
		_ = small.Set(ctx, "c", []byte("3"), time.Minute)

		if val, _ := small.Get(ctx, "b"); val != nil {
			t.Error("expected b to be evicted")
		}
		if val, _ := small.Get(ctx, "a"); val == nil {
			t.Error("expected a to survive eviction")
		}
		if size, capacity := small.Stats(); size != 2 || capacity != 2 {
			t.Errorf("expected stats 2/2, got %d/%d", size, capacity)
		}
	})

	t.Run("ResultRoundTrip", func(t *testing.T) {
		if err := cache.SetResult(ctx, "req-1", sampleResult(), time.Minute); err != nil {
			t.Fatalf("SetResult failed: %v", err)
		}

		got, err := cache.GetResult(ctx, "req-1")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if got == nil || *got != *sampleResult() {
			t.Errorf("expected %+v, got %+v", sampleResult(), got)
		}

		// results are namespaced away from raw keys
		if raw, _ := cache.Get(ctx, "req-1"); raw != nil {
			t.Error("expected raw key to be distinct from result key")
		}
	})

	t.Run("ResultMiss", func(t *testing.T) {
		got, err := cache.GetResult(ctx, "unknown")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil on miss, got %v, %v", got, err)
		}
	})

	t.Run("SetNilResult", func(t *testing.T) {
		if err := cache.SetResult(ctx, "nil", nil, time.Minute); err == nil {
			t.Error("expected error for nil result")
		}
	})

	t.Run("HitRatio", func(t *testing.T) {
		c := NewLRUCache(10)
		_ = c.Set(ctx, "x", []byte("1"), time.Minute)
		_, _ = c.Get(ctx, "x")
		_, _ = c.Get(ctx, "y")
		if r := c.HitRatio(); r != 0.5 {
			t.Errorf("expected hit ratio 0.5, got %v", r)
		}
	})

	t.Run("Close", func(t *testing.T) {
		c := NewLRUCache(10)
		_ = c.Set(ctx, "k", []byte("v"), time.Minute)
		if err := c.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		val, _ := c.Get(ctx, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestLayeredCache(t *testing.T) {
	ctx := context.Background()
	remote := NewLRUCache(100)
	layered := NewLayered(NewLRUCache(100), remote, time.Minute)

	t.Run("WritesBothLayers", func(t *testing.T) {
		if err := layered.SetResult(ctx, "k1", sampleResult(), time.Hour); err != nil {
			t.Fatalf("SetResult failed: %v", err)
		}
		got, _ := remote.GetResult(ctx, "k1")
		if got == nil {
			t.Fatal("expected result in L2")
		}
	})

	t.Run("L2HitPopulatesL1", func(t *testing.T) {
		_ = remote.SetResult(ctx, "k2", sampleResult(), time.Hour)

		got, err := layered.GetResult(ctx, "k2")
		if err != nil || got == nil {
			t.Fatalf("expected L2 hit, got %v, %v", got, err)
		}

		if size, _ := layered.Stats(); size != 2 {
			t.Errorf("expected 2 entries in L1, got %d", size)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = layered.Set(ctx, "k3", []byte("v"), time.Hour)
		_ = layered.Delete(ctx, "k3")
		if val, _ := remote.Get(ctx, "k3"); val != nil {
			t.Error("expected delete to reach L2")
		}
	})
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("CHURNGUARD_TEST_REDIS")
	if addr == "" {
		t.Skip("CHURNGUARD_TEST_REDIS not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	if err := c.SetResult(ctx, "redis-test", sampleResult(), time.Minute); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	got, err := c.GetResult(ctx, "redis-test")
	if err != nil || got == nil || *got != *sampleResult() {
		t.Errorf("expected %+v, got %+v (%v)", sampleResult(), got, err)
	}
	_ = c.Delete(ctx, resultKey("redis-test"))
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("NoneType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "none"})
		if err != nil || cache != nil {
			t.Errorf("expected nil cache, got %v, %v", cache, err)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
