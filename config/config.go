package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Artifacts     ArtifactsConfig     `mapstructure:"artifacts"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Database      DatabaseConfig      `mapstructure:"database"`
	PythonService PythonServiceConfig `mapstructure:"python_service"`
	NER           NERConfig           `mapstructure:"ner"`
	Summarizer    SummarizerConfig    `mapstructure:"summarizer"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`                                     // 服务器主机
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`                             // 读超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"`                            // 写超时
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File       string `mapstructure:"file"`         // 日志文件路径，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件最大尺寸
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧日志
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"`        // 存储类型：local 或 minio
	Path      string `mapstructure:"path" validate:"required_if=Type local"`   // 本地存储路径
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"` // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ArtifactsConfig 处理产物目录配置
// 目录是存储后端中的相对前缀；本地存储时位于 Root 下
type ArtifactsConfig struct {
	Root       string `mapstructure:"root"`                            // 本地产物根目录
	TextDir    string `mapstructure:"text_dir" validate:"required"`    // 提取文本目录
	EntityDir  string `mapstructure:"entity_dir" validate:"required"`  // 实体JSON目录
	SummaryDir string `mapstructure:"summary_dir" validate:"required"` // 摘要目录
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable    bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type      string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型：memory 或 redis
	Address   string `mapstructure:"address"`                            // Redis地址
	Password  string `mapstructure:"password"`                           // Redis密码
	DB        int    `mapstructure:"db"`                                 // Redis数据库
	TTL       int    `mapstructure:"ttl" validate:"min=0"`               // 缓存TTL（秒）
	KeyPrefix string `mapstructure:"key_prefix"`                         // 键前缀
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`                         // 是否启用任务队列
	Type          string `mapstructure:"type" validate:"oneof=redis"`    // 队列类型
	RedisAddr     string `mapstructure:"redis_addr"`                     // Redis地址
	RedisPassword string `mapstructure:"redis_password"`                 // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`                       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency" validate:"min=1"`   // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit" validate:"min=0"`   // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay" validate:"min=0"`   // 重试延迟(秒)
	QueueName     string `mapstructure:"queue_name" validate:"required"` // 投递队列名称
	Worker        bool   `mapstructure:"worker"`                         // 是否在本进程内运行工作者
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN  string `mapstructure:"dsn" validate:"required"`      // 数据源名称
}

// PythonServiceConfig Python推理服务配置
type PythonServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"` // Python服务基础URL
	Timeout    time.Duration `mapstructure:"timeout"`                          // 请求超时时间
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0"`     // 最大重试次数
	RetryDelay time.Duration `mapstructure:"retry_delay"`                      // 重试间隔
	EnableTLS  bool          `mapstructure:"enable_tls"`                       // 是否启用TLS
}

// NERConfig 命名实体识别配置
type NERConfig struct {
	Model string `mapstructure:"model" validate:"required"`
}

// SummarizerConfig 摘要模型配置
type SummarizerConfig struct {
	Model     string `mapstructure:"model" validate:"required"`
	MaxLength int    `mapstructure:"max_length" validate:"min=1"`
	MinLength int    `mapstructure:"min_length" validate:"min=0,ltefield=MaxLength"`
	DoSample  bool   `mapstructure:"do_sample"`
}

// ProcessingConfig 文档处理配置
type ProcessingConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // 单个文档处理超时
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Info("Using config file")
	}

	// 支持环境变量覆盖，例如 SERVER_PORT、PYTHON_SERVICE_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置项
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开形如 ${VAR} 的敏感配置项
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
		return envVal
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "nerf")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 产物目录默认配置
	v.SetDefault("artifacts.root", ".")
	v.SetDefault("artifacts.text_dir", "documents/txt")
	v.SetDefault("artifacts.entity_dir", "documents/ner")
	v.SetDefault("artifacts.summary_dir", "documents/summary")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 86400)
	v.SetDefault("cache.key_prefix", "nerf:")

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 10)
	v.SetDefault("queue.queue_name", "default")
	v.SetDefault("queue.worker", true)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/nerf.db")

	// Python服务默认配置
	v.SetDefault("python_service.base_url", "http://localhost:8000/api")
	v.SetDefault("python_service.timeout", "60s")
	v.SetDefault("python_service.max_retries", 3)
	v.SetDefault("python_service.retry_delay", "1s")
	v.SetDefault("python_service.enable_tls", false)

	// 模型默认配置
	v.SetDefault("ner.model", "dslim/bert-large-NER")
	v.SetDefault("summarizer.model", "facebook/bart-large-cnn")
	v.SetDefault("summarizer.max_length", 150)
	v.SetDefault("summarizer.min_length", 40)
	v.SetDefault("summarizer.do_sample", false)

	v.SetDefault("processing.timeout", "5m")
}
