package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache的进程内缓存
type MemoryCache struct {
	items  *gocache.Cache
	prefix string
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultConfig().DefaultTTL
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}

	return &MemoryCache{
		items:  gocache.New(ttl, interval),
		prefix: config.KeyPrefix,
	}, nil
}

// Get 读取缓存，非字符串的值视为未命中
func (m *MemoryCache) Get(key string) (string, bool, error) {
	value, found := m.items.Get(m.prefix + key)
	if !found {
		return "", false, nil
	}
	str, ok := value.(string)
	return str, ok, nil
}

// Set 写入缓存，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(m.prefix+key, value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(key string) error {
	m.items.Delete(m.prefix + key)
	return nil
}

// Clear 删除前缀下的所有缓存项
func (m *MemoryCache) Clear() error {
	if m.prefix == "" {
		m.items.Flush()
		return nil
	}
	for key := range m.items.Items() {
		if strings.HasPrefix(key, m.prefix) {
			m.items.Delete(key)
		}
	}
	return nil
}

// Len 返回未过期的缓存项数量
func (m *MemoryCache) Len() int {
	return m.items.ItemCount()
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
