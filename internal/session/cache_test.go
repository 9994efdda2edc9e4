package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapKV is an in-memory KV for tests.
type mapKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapKV() *mapKV { return &mapKV{m: map[string]string{}} }

func (k *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *mapKV) Set(_ context.Context, key, val string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = val
	return nil
}

func (k *mapKV) Del(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.m, key)
	}
	return nil
}

func TestSnapshotCacheReplaysCacheOrigin(t *testing.T) {
	store := newMapKV()
	inner := &fakeDocSource{}
	cache := NewSnapshotCache(inner, store, time.Hour)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	// First subscribe: nothing cached, only the authoritative delivery.
	ch, cancel, err := cache.WatchEntitled(ctx, 1)
	require.NoError(t, err)
	inner.push(0, authoritative(1, "d1"))

	snap := <-ch
	assert.False(t, snap.FromCache)
	assert.Equal(t, "d1", snap.Documents[0].ID)
	cancel()

	// Second subscribe: the stored snapshot replays first, tagged FromCache
	// with no pending writes, so the engine will discard it.
	ch, cancel, err = cache.WatchEntitled(ctx, 1)
	require.NoError(t, err)
	defer cancel()

	snap = <-ch
	assert.True(t, snap.FromCache)
	assert.False(t, snap.HasPendingWrites)
	assert.Equal(t, "d1", snap.Documents[0].ID)

	inner.push(1, authoritative(1, "d1", "d2"))
	snap = <-ch
	assert.False(t, snap.FromCache)
	assert.Len(t, snap.Documents, 2)
}

func TestSnapshotCachePendingWriteMarker(t *testing.T) {
	store := newMapKV()
	inner := &fakeDocSource{}
	cache := NewSnapshotCache(inner, store, time.Hour)

	ctx := context.Background()

	ch, cancel, err := cache.WatchEntitled(ctx, 2)
	require.NoError(t, err)
	inner.push(0, authoritative(2, "d1"))
	<-ch
	cancel()

	require.NoError(t, cache.MarkPendingWrite(ctx, 2))

	ch, cancel, err = cache.WatchEntitled(ctx, 2)
	require.NoError(t, err)
	defer cancel()

	snap := <-ch
	assert.True(t, snap.FromCache)
	assert.True(t, snap.HasPendingWrites, "pending local write makes the cached replay admissible")

	// The next authoritative snapshot clears the marker.
	inner.push(1, authoritative(2, "d1"))
	<-ch
	_, pending, _ := store.Get(ctx, snapshotKey(2)+pendingKeySuffix)
	assert.False(t, pending)
}
