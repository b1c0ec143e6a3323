package store

import (
	"context"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rushteam/prodrec/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore，用于保存数据快照、交互埋点与热度有序集合。
type RedisStore struct {
	client *redis.Client
}

var (
	_ core.Store         = (*RedisStore)(nil)
	_ core.KeyValueStore = (*RedisStore)(nil)
)

// NewRedisStore 连接 Redis 并 Ping 一次。
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Annotatef(err, "ping redis %s", addr)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient 使用已有的客户端。
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	return val, errors.Annotatef(err, "redis get %s", key)
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.Annotatef(r.client.Set(ctx, key, value, 0).Err(), "redis set %s", key)
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return errors.Trace(r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (r *RedisStore) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	score, err := r.client.ZIncrBy(ctx, key, incr, member).Result()
	return score, errors.Trace(err)
}

// ZRange 使用 ZREVRANGE，分数从高到低。
func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := r.client.ZRevRange(ctx, key, start, stop).Result()
	return members, errors.Trace(err)
}

func (r *RedisStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	score, err := r.client.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, core.ErrStoreNotFound
	}
	return score, errors.Trace(err)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
