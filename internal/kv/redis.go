package kv

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written by RedisStore so that a
// SCAN only ever sees this store's records.
const DefaultRedisNamespace = "kv:"

// redisEnvelope is the on-wire form of a record.
type redisEnvelope struct {
	Value    string   `json:"v"`
	Metadata Metadata `json:"m,omitempty"`
}

// RedisStore is a Redis implementation of Store. TTLs are native key
// expirations; List is backed by SCAN, so pages may be uneven in size and
// the cursor is the SCAN cursor.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore creates a Redis-backed store. An empty namespace uses
// DefaultRedisNamespace.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}

	return &RedisStore{client: client, namespace: namespace}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := r.GetWithMetadata(ctx, key)
	if err != nil {
		return "", err
	}

	return entry.Value, nil
}

func (r *RedisStore) GetWithMetadata(ctx context.Context, key string) (*Entry, error) {
	raw, err := r.client.Get(ctx, r.namespace+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Written by something else; surface the raw bytes.
		return &Entry{Key: key, Value: raw}, nil
	}

	return &Entry{Key: key, Value: env.Value, Metadata: env.Metadata}, nil
}

func (r *RedisStore) Put(ctx context.Context, key, value string, opts ...PutOption) error {
	cfg := NewPutConfig(opts...)

	payload, err := json.Marshal(redisEnvelope{Value: value, Metadata: cfg.Metadata})
	if err != nil {
		return err
	}

	if cfg.IfAbsent {
		ok, err := r.client.SetNX(ctx, r.namespace+key, payload, cfg.TTL).Result()
		if err != nil {
			return err
		}

		if !ok {
			return ErrExists
		}

		return nil
	}

	return r.client.Set(ctx, r.namespace+key, payload, cfg.TTL).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespace+key).Err()
}

func (r *RedisStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	var cursor uint64

	if opts.Cursor != "" {
		parsed, err := strconv.ParseUint(opts.Cursor, 10, 64)
		if err != nil {
			return nil, err
		}

		cursor = parsed
	}

	match := escapeGlob(r.namespace+opts.Prefix) + "*"

	keys, next, err := r.client.Scan(ctx, cursor, match, int64(normalizeLimit(opts.Limit))).Result()
	if err != nil {
		return nil, err
	}

	result := &ListResult{
		Keys:     make([]string, 0, len(keys)),
		Complete: next == 0,
	}

	for _, key := range keys {
		result.Keys = append(result.Keys, strings.TrimPrefix(key, r.namespace))
	}

	if !result.Complete {
		result.Cursor = strconv.FormatUint(next, 10)
	}

	return result, nil
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// escapeGlob escapes SCAN MATCH metacharacters.
func escapeGlob(s string) string {
	var b strings.Builder

	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}

		b.WriteRune(c)
	}

	return b.String()
}

// Compile-time check.
var _ Store = (*RedisStore)(nil)
