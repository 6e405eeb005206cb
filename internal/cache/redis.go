package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/model"
)

// DefaultRedisHash is the hash that holds every cache entry.
const DefaultRedisHash = "peak-enrich:wikidata"

// hashClient is the subset of *redis.Client used by Redis.
type hashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HKeys(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// Redis is a Store kept in a single Redis hash. Puts are buffered and written
// with one HSET on Flush.
type Redis struct {
	client  hashClient
	hash    string
	pending map[string]model.Location
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, hash string) (*Redis, error) {
	if addr == "" {
		return nil, eris.New("cache: redis addr is required")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "cache: redis ping %s", addr)
	}
	return newRedis(rc, hash), nil
}

func newRedis(c hashClient, hash string) *Redis {
	if hash == "" {
		hash = DefaultRedisHash
	}
	return &Redis{client: c, hash: hash, pending: make(map[string]model.Location)}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (*model.Location, bool, error) {
	if loc, ok := r.pending[key]; ok {
		return &loc, true, nil
	}

	raw, err := r.client.HGet(ctx, r.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}

	var loc model.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis decode %s", key)
	}
	return &loc, true, nil
}

// Put implements Store.
func (r *Redis) Put(_ context.Context, key string, loc model.Location) error {
	r.pending[key] = loc
	return nil
}

// Flush implements Store.
func (r *Redis) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(r.pending))
	for key, loc := range r.pending {
		raw, err := json.Marshal(loc)
		if err != nil {
			return eris.Wrapf(err, "cache: redis encode %s", key)
		}
		fields[key] = string(raw)
	}
	if err := r.client.HSet(ctx, r.hash, fields).Err(); err != nil {
		return eris.Wrap(err, "cache: redis flush")
	}
	r.pending = make(map[string]model.Location)
	return nil
}

// Keys implements Lister.
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.HKeys(ctx, r.hash).Result()
	if err != nil {
		return nil, eris.Wrap(err, "cache: redis list")
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for k := range r.pending {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
