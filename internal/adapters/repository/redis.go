package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/biasaudit/internal/domain/model"
)

// RedisStore keeps each report as a JSON string under
// <prefix>:report:<id> and indexes ids by creation time in the sorted set
// <prefix>:reports.
type RedisStore struct {
	client *redis.Client
	opts   options
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStoreWithClient(client, opts...), nil
}

// NewRedisStoreWithClient uses an existing client. Close closes it.
func NewRedisStoreWithClient(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: newOptions(opts)}
}

func (s *RedisStore) reportKey(id string) string {
	return s.opts.prefix + ":report:" + id
}

func (s *RedisStore) indexKey() string {
	return s.opts.prefix + ":reports"
}

func (s *RedisStore) Save(ctx context.Context, r model.Report) error { //nolint:gocritic // hugeParam
	if r.ID == "" {
		return ErrEmptyID
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.reportKey(r.ID), body, s.opts.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(r.CreatedAt.UnixNano()), Member: r.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (model.Report, error) {
	b, err := s.client.Get(ctx, s.reportKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return decodeReport(b)
}

// List reads the newest ids from the index. Ids whose report has expired
// are dropped from the index as they are found and the page is refilled
// from older ids, so a short page means the index is exhausted.
func (s *RedisStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	out := make([]model.Report, 0, limit)
	var start int64
	for len(out) < limit {
		want := int64(limit - len(out))
		ids, err := s.client.ZRevRange(ctx, s.indexKey(), start, start+want-1).Result()
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.reportKey(id)
		}
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}

		var expired []any
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				expired = append(expired, ids[i])
				continue
			}
			r, err := decodeReport([]byte(str))
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		// Pruned ids shift the rest of the index up, so only live ids advance start.
		start += int64(len(ids) - len(expired))
		if len(expired) > 0 {
			if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
				// The index still holds them; skip past instead of rereading.
				start += int64(len(expired))
			}
		}
		if int64(len(ids)) < want {
			break
		}
	}
	return out, nil
}

// Count returns the size of the index. Expired reports are counted until
// a List call prunes them.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
