package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/coocood/freecache"
)

const (
	defaultLocalSizeMB = 16
	// freecache 要求的最小容量为 512KB
	minLocalSizeBytes = 512 * 1024
)

// LocalStore 进程内缓存（freecache），进程启动时创建，随进程退出释放
type LocalStore struct {
	cache *freecache.Cache
}

// NewLocalStore 创建进程内缓存
func NewLocalStore(sizeMB int) *LocalStore {
	if sizeMB <= 0 {
		sizeMB = defaultLocalSizeMB
	}
	size := sizeMB * 1024 * 1024
	if size < minLocalSizeBytes {
		size = minLocalSizeBytes
	}
	return &LocalStore{cache: freecache.NewCache(size)}
}

// GetJSON 获取 JSON 缓存
func (s *LocalStore) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	if s == nil || s.cache == nil {
		return false, nil
	}
	payload, err := s.cache.Get(localKey(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存，ttl 按秒向上取整
func (s *LocalStore) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if s == nil || s.cache == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.cache.Set(localKey(key), payload, expireSeconds(ttl))
}

// Del 删除缓存
func (s *LocalStore) Del(_ context.Context, key string) error {
	if s == nil || s.cache == nil {
		return nil
	}
	s.cache.Del(localKey(key))
	return nil
}

// Clear 清空全部本地缓存
func (s *LocalStore) Clear() {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.Clear()
}

func localKey(key string) []byte {
	return []byte(strings.TrimSpace(key))
}

func expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	seconds := math.Ceil(ttl.Seconds())
	if seconds > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(seconds)
}
