package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"vendocs/internal/model"
)

const (
	snapshotKeyPrefix = "vendocs:snapshot:"
	pendingKeySuffix  = ":pending"
)

func snapshotKey(level int) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, level)
}

// KV is the narrow key-value surface the snapshot cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// redisKV backs the KV surface with a Redis client.
type redisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) KV {
	return &redisKV{c: c}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisKV) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.c.Set(ctx, key, val, ttl).Err()
}

func (r *redisKV) Del(ctx context.Context, keys ...string) error {
	return r.c.Del(ctx, keys...).Err()
}

// SnapshotCache decorates a DocumentSource with a local snapshot replay: on
// subscribe, the last stored snapshot for the level is delivered immediately,
// tagged FromCache so the engine's discard rule applies, followed by the
// authoritative stream. Each authoritative snapshot is stored back and clears
// the pending-write marker.
type SnapshotCache struct {
	inner DocumentSource
	store KV
	ttl   time.Duration
}

func NewSnapshotCache(inner DocumentSource, store KV, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{inner: inner, store: store, ttl: ttl}
}

var _ DocumentSource = (*SnapshotCache)(nil)

func (c *SnapshotCache) WatchEntitled(ctx context.Context, level int) (<-chan model.DocumentSnapshot, CancelFunc, error) {
	innerCh, cancel, err := c.inner.WatchEntitled(ctx, level)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan model.DocumentSnapshot, 2)
	go func() {
		defer close(out)

		if snap, ok := c.load(ctx, level); ok {
			select {
			case out <- snap:
			case <-ctx.Done():
				cancel()
				return
			}
		}

		for snap := range innerCh {
			c.storeSnapshot(ctx, snap)
			select {
			case out <- snap:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()

	return out, cancel, nil
}

// MarkPendingWrite records an outstanding local write for a level. The next
// cached replay for that level carries HasPendingWrites=true and is therefore
// admissible even before the authoritative read lands.
func (c *SnapshotCache) MarkPendingWrite(ctx context.Context, level int) error {
	return c.store.Set(ctx, snapshotKey(level)+pendingKeySuffix, "1", c.ttl)
}

func (c *SnapshotCache) load(ctx context.Context, level int) (model.DocumentSnapshot, bool) {
	raw, ok, err := c.store.Get(ctx, snapshotKey(level))
	if err != nil || !ok {
		return model.DocumentSnapshot{}, false
	}
	var docs []model.Document
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return model.DocumentSnapshot{}, false
	}

	_, pending, _ := c.store.Get(ctx, snapshotKey(level)+pendingKeySuffix)
	return model.DocumentSnapshot{
		SnapshotMeta: model.SnapshotMeta{FromCache: true, HasPendingWrites: pending},
		Level:        level,
		Documents:    docs,
	}, true
}

func (c *SnapshotCache) storeSnapshot(ctx context.Context, snap model.DocumentSnapshot) {
	b, err := json.Marshal(snap.Documents)
	if err != nil {
		return
	}
	// Cache failures degrade to an uncached subscribe; never surfaced.
	_ = c.store.Set(ctx, snapshotKey(snap.Level), string(b), c.ttl)
	_ = c.store.Del(ctx, snapshotKey(snap.Level)+pendingKeySuffix)
}
