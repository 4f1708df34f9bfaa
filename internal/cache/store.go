package cache

import (
	"context"
	"time"
)

// Store JSON 缓存接口，本地与 Redis 实现共用
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
