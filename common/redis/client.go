package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-vitalsync/common/config"

	"github.com/go-redis/redis/v8"
)

// Client 别名，调用方无需直接引用 go-redis
type Client = redis.Client

const pingTimeout = 3 * time.Second

// NewRedisClient 创建 Redis 客户端（不连接）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Connect 创建客户端并用 PING 检查连接
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := NewRedisClient(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close 关闭客户端，允许 nil
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
