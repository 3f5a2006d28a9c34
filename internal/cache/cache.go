package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache 字符串键值缓存，目前用于保存摘要模型的输出
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	// Clear 只清理本缓存键前缀下的内容
	Clear() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 按类型创建缓存实例，类型为空时使用内存缓存
func NewCache(config Config) (Cache, error) {
	if config.Type == "" {
		config.Type = "memory"
	}
	factory, ok := registry[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	Type            string        // 缓存类型: memory 或 redis
	RedisAddr       string        // Redis地址
	RedisPassword   string        // Redis密码
	RedisDB         int           // Redis数据库编号
	DefaultTTL      time.Duration // Set时ttl为0使用的过期时间
	CleanupInterval time.Duration // 过期项清理间隔，仅内存缓存使用
	KeyPrefix       string        // 键前缀
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
		KeyPrefix:       "nerf:",
	}
}

// HashKey 对任意长度的内容生成 "<prefix>:<sha256>" 形式的定长键
func HashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
