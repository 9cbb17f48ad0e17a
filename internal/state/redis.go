package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述远端状态存储的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisStore 把状态快照 upsert 到 Redis，供外部仪表盘读取。
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore 建立连接并做一次连通性检查。
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis 地址不能为空")
	}
	key := cfg.Key
	if key == "" {
		key = "fundagent:state"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("无法连接到 Redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Put 以覆盖写的方式同步快照。
func (s *RedisStore) Put(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化状态快照失败: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("同步状态快照到 Redis 失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
