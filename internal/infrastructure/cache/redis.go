package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis caches embedding vectors and coordinates pipeline run locks. When
// the server is unreachable every operation degrades to a no-op so the
// pipeline keeps working without a cache.
type Redis struct {
	client *redis.Client
	logger *log.Logger

	warnedUnavailable atomic.Bool
}

func NewRedis(logger *log.Logger) *Redis {
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	if port == "" {
		port = "6379"
	}
	pass := strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))

	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Printf("[Cache] Redis unavailable, bypassing cache: %v", err)
		}
		_ = client.Close()
		return &Redis{client: nil, logger: logger}
	}

	return &Redis{client: client, logger: logger}
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r == nil || r.logger == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Printf("[Cache] Redis unavailable, bypassing cache: %v", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.isUnavailable() {
		return errors.New("redis unavailable")
	}
	return r.client.Ping(ctx).Err()
}

// EmbeddingKey derives a stable cache key from the cleaned input text and
// the model that produced the vector.
func EmbeddingKey(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(h[:])
}

func (r *Redis) GetEmbedding(ctx context.Context, key string) ([]float64, bool, error) {
	if r.isUnavailable() {
		return nil, false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		r.warnUnavailableOnce(err)
		return nil, false, err
	}
	if len(b) == 0 {
		return nil, false, nil
	}
	var vec []float64
	if err := json.Unmarshal(b, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *Redis) SetEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error {
	if r.isUnavailable() {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTLFromEnv()
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.isUnavailable() {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// AcquireRunLock grabs the pipeline run lock via SETNX. A false return with
// nil error means another run holds the lock. Without Redis the lock is
// granted optimistically: the match_records unique index still prevents
// duplicate persistence.
func (r *Redis) AcquireRunLock(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	if r.isUnavailable() {
		return true, nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ok, err := r.client.SetNX(ctx, runLockKey, runID, ttl).Result()
	if err != nil {
		r.warnUnavailableOnce(err)
		return true, nil
	}
	return ok, nil
}

// releaseRunLockScript deletes the lock only while this run still owns it,
// so a run that outlived the TTL cannot release a successor's lock.
var releaseRunLockScript = redis.NewScript(
	`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`,
)

func (r *Redis) ReleaseRunLock(ctx context.Context, runID string) error {
	if r.isUnavailable() {
		return nil
	}
	if err := releaseRunLockScript.Run(ctx, r.client, []string{runLockKey}, runID).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

const runLockKey = "pipeline:run:lock"

func DefaultTTLFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("REDIS_TTL"))
	if raw == "" {
		return 24 * time.Hour
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(v) * time.Second
}
