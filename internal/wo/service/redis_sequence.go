package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 按天的序号键保留三天
const sequenceKeyTTL = 72 * time.Hour

// RedisSequence 基于INCRBY的序号分配
type RedisSequence struct {
	rdb *redis.Client
}

// NewRedisSequence 创建Redis序号分配器
func NewRedisSequence(rdb *redis.Client) *RedisSequence {
	return &RedisSequence{rdb: rdb}
}

// Reserve 预留n个连续序号，返回第一个
func (r *RedisSequence) Reserve(ctx context.Context, scope string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d sequence values: count must be positive", n)
	}
	key := "wo:seq:" + scope

	pipe := r.rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, sequenceKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val() - n + 1, nil
}
