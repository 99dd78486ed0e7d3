package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "studai:job:"
	maxUpdateRetries = 8
)

// RedisRegistry stores each job as JSON under prefix+id and tracks ids in a
// sorted set scored by creation time.
type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOptions configures a RedisRegistry.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL bounds how long a key may outlive the sweeper. Zero disables expiry.
	TTL time.Duration
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, opts RedisOptions) (*RedisRegistry, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedisRegistryWithClient(rdb, opts.Prefix, opts.TTL), nil
}

// NewRedisRegistryWithClient wraps an existing client.
func NewRedisRegistryWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRegistry {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisRegistry) Create(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job id is required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.key(job.ID), payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	if !ok {
		return duplicate(job.ID)
	}
	score := float64(job.CreatedAt.UnixNano())
	if err := r.rdb.ZAdd(ctx, r.indexKey(), redis.Z{Score: score, Member: job.ID}).Err(); err != nil {
		return fmt.Errorf("index job: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*Job, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("load job: %w", err)
	}
	return decodeJob(data)
}

func (r *RedisRegistry) Update(ctx context.Context, id string, mutate func(*Job) error) (*Job, error) {
	key := r.key(id)
	var updated *Job
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return notFound(id)
			}
			return err
		}
		current, err := decodeJob(data)
		if err != nil {
			return err
		}
		next, err := applyUpdate(current, mutate, r.now())
		if err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update job %s: too much contention", id)
}

func (r *RedisRegistry) List(ctx context.Context) ([]*Job, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list job index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	out := make([]*Job, 0, len(values))
	var stale []any
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		job, err := decodeJob([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if len(stale) > 0 {
		_ = r.rdb.ZRem(ctx, r.indexKey(), stale...).Err()
	}
	return out, nil
}

func (r *RedisRegistry) Prune(ctx context.Context, before time.Time) ([]*Job, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var pruned []*Job
	for _, job := range all {
		if !expired(job, before) {
			continue
		}
		pipe := r.rdb.TxPipeline()
		pipe.Del(ctx, r.key(job.ID))
		pipe.ZRem(ctx, r.indexKey(), job.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return pruned, fmt.Errorf("prune job %s: %w", job.ID, err)
		}
		pruned = append(pruned, job)
	}
	return pruned, nil
}

func (r *RedisRegistry) Close() error {
	return r.rdb.Close()
}

func (r *RedisRegistry) key(id string) string {
	return r.prefix + id
}

func (r *RedisRegistry) indexKey() string {
	return r.prefix + "index"
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
