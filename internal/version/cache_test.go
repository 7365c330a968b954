package version

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
)

// unreachableCache points at a port nothing listens on
func unreachableCache() *SnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return newSnapshotCache(client, &CacheConfig{KeyPrefix: "test", DefaultTTL: time.Minute}, zap.NewNop())
}

func TestCachedStoreDegradesWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache := unreachableCache()
	store := NewCachedStore(NewMemoryStore(), cache, zap.NewNop())
	defer store.Close()

	v, err := store.Append(ctx, Draft{
		DocumentID:     "doc-1",
		DocumentLength: 10,
		Source:         SourceAnnotatorDraft,
		Annotations:    []annotation.Annotation{ann("a", 0, 3, "email", "[email_1]")},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != v.ID || len(got.Annotations) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 0 hits and 2 misses", stats)
	}
}

func TestSnapshotCacheKey(t *testing.T) {
	cache := unreachableCache()
	defer cache.Close()

	if got := cache.key("v1"); got != "test:version:v1" {
		t.Errorf("key() = %q", got)
	}
}
