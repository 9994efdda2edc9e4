// Package favorites persists each user's favorite document ids in the local
// key-value store as one opaque string-encoded list.
package favorites

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "vendocs:favorites:"

// Store reads and writes favorites lists keyed by user id.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the user's favorite document ids. A missing key is an empty
// list, not an error.
func (s *Store) Get(ctx context.Context, uid string) ([]string, error) {
	raw, err := s.client.Get(ctx, keyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeIDs(raw), nil
}

// Put replaces the user's favorites list.
func (s *Store) Put(ctx context.Context, uid string, ids []string) error {
	return s.client.Set(ctx, keyPrefix+uid, EncodeIDs(ids), 0).Err()
}

// EncodeIDs packs document ids into the stored string form.
func EncodeIDs(ids []string) string {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	return strings.Join(clean, ",")
}

// DecodeIDs unpacks the stored string form, dropping empties.
func DecodeIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
