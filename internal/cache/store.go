// Package cache holds the read-through cache in front of the public post
// endpoints.  Entries are serialized JSON payloads kept in Redis and served
// back byte for byte until they expire or are invalidated.
package cache

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal key/value surface the post cache needs.
type Store interface {
    Get(ctx context.Context, key string) ([]byte, error)
    Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
    Delete(ctx context.Context, keys ...string) error
    // DeletePrefix removes every key starting with prefix and reports how
    // many were removed.
    DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// RedisStore implements Store on a go-redis client.  When prefix is set
// every key is namespaced as "<prefix>:<key>".
type RedisStore struct {
    rdb    *redis.Client
    prefix string
}

// NewRedisStore returns a Store backed by rdb.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
    return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
    if s.prefix == "" {
        return k
    }
    return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
    bs, err := s.rdb.Get(ctx, s.key(key)).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, ErrMiss
    }
    return bs, err
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
    return s.rdb.Set(ctx, s.key(key), val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
    if len(keys) == 0 {
        return nil
    }
    full := make([]string, len(keys))
    for i, k := range keys {
        full[i] = s.key(k)
    }
    return s.rdb.Del(ctx, full...).Err()
}

// DeletePrefix walks the keyspace with SCAN rather than KEYS so a large
// cache does not block the server.  Keys are collected over the full
// iteration and deleted afterwards; deleting between SCAN calls can make
// some servers skip keys.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
    match := escapeGlob(s.key(prefix)) + "*"
    seen := make(map[string]struct{})
    var keys []string
    var cursor uint64
    for {
        batch, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
        if err != nil {
            return 0, err
        }
        // SCAN may return a key more than once.
        for _, k := range batch {
            if _, dup := seen[k]; !dup {
                seen[k] = struct{}{}
                keys = append(keys, k)
            }
        }
        cursor = next
        if cursor == 0 {
            break
        }
    }

    removed := 0
    for len(keys) > 0 {
        n := len(keys)
        if n > scanBatch {
            n = scanBatch
        }
        deleted, err := s.rdb.Del(ctx, keys[:n]...).Result()
        if err != nil {
            return removed, err
        }
        removed += int(deleted)
        keys = keys[n:]
    }
    return removed, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
    return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`).Replace(s)
}
