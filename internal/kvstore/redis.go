package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis はRedisバックエンドのStore実装。
// キーはnamespaceプレフィックス付きで格納する。TTLは設定しない
// （チェックポイントは明示的に上書き・削除されるまで残る）。
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis はRedis接続を開いてStore実装を生成する。
// redisURLは "redis://[user:pass@]host:port/db" 形式。
// 接続確認に失敗した場合はエラーを返す。
func NewRedis(redisURL, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if namespace == "" {
		namespace = "agora"
	}

	return &Redis{
		client:    client,
		namespace: namespace,
	}, nil
}

// Get は指定キーの値を返す。
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.buildKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return v, true, nil
}

// Set は指定キーに値を保存する。
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.buildKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}

// buildKey はnamespaceプレフィックス付きのキーを組み立てる。
func (r *Redis) buildKey(key string) string {
	return r.namespace + ":" + key
}
