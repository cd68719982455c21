// Package storage provides result caches for browse windows: a NATS
// JetStream KV cache shared between processes and an in-memory cache.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/c360studio/lccshelf/shelf"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "LCCSHELF_WINDOWS"

// bucket is the slice of jetstream.KeyValue the cache needs.
type bucket interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, value []byte) error
}

// kvBucket adapts a jetstream.KeyValue to bucket.
type kvBucket struct {
	kv jetstream.KeyValue
}

func (b kvBucket) get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (b kvBucket) put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

// envelope is the stored form of a window.
type envelope struct {
	Expires time.Time    `msgpack:"expires"`
	Window  shelf.Window `msgpack:"window"`
}

// KVCache is a shelf.Cache over a JetStream KV bucket. Windows are
// msgpack-encoded under a hash of the request key. Bucket failures are
// logged and fall back to computing the window.
type KVCache struct {
	bucket bucket
	logger *slog.Logger
	now    func() time.Time
}

var _ shelf.Cache = (*KVCache)(nil)

// NewKVCache opens or creates the named bucket. maxAge bounds how long
// the server keeps any entry.
func NewKVCache(ctx context.Context, js jetstream.JetStream, name string, maxAge time.Duration, logger *slog.Logger) (*KVCache, error) {
	if name == "" {
		name = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, name, maxAge)
	if err != nil {
		return nil, fmt.Errorf("create window bucket: %w", err)
	}
	return newKVCache(kvBucket{kv: kv}, logger), nil
}

func newKVCache(b bucket, logger *slog.Logger) *KVCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVCache{bucket: b, logger: logger, now: time.Now}
}

// Connect dials NATS at url and returns a cache on the named bucket plus
// a function that closes the connection.
func Connect(ctx context.Context, url, name string, maxAge time.Duration, logger *slog.Logger) (*KVCache, func(), error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	c, err := NewKVCache(ctx, js, name, maxAge, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return c, conn.Close, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, maxAge time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "lccshelf browse window cache",
		History:     1,
		TTL:         maxAge,
	})
}

// Fetch implements shelf.Cache.
func (c *KVCache) Fetch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (shelf.Window, error)) (shelf.Window, error) {
	k := hashKey(key)

	data, err := c.bucket.get(ctx, k)
	switch {
	case err == nil:
		var env envelope
		if derr := msgpack.Unmarshal(data, &env); derr != nil {
			c.logger.Warn("Discarding undecodable cached window", "key", key, "error", derr)
		} else if c.now().Before(env.Expires) {
			return env.Window, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		c.logger.Warn("Window cache read failed", "key", key, "error", err)
	}

	w, err := compute(ctx)
	if err != nil {
		return shelf.Window{}, err
	}

	data, err = msgpack.Marshal(envelope{Expires: c.now().Add(ttl), Window: w})
	if err != nil {
		c.logger.Warn("Window cache encode failed", "key", key, "error", err)
		return w, nil
	}
	if err := c.bucket.put(ctx, k, data); err != nil {
		c.logger.Warn("Window cache write failed", "key", key, "error", err)
	}
	return w, nil
}

// hashKey maps a request key to a KV-safe key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "w_" + hex.EncodeToString(sum[:])
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
