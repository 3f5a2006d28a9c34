package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接，保存文档记录与处理状态
var DB *gorm.DB

// Config 数据库配置
type Config struct {
	Type         string        // 数据库类型，目前仅支持sqlite
	DSN          string        // SQLite文件路径或完整DSN
	MaxOpenConns int           // 最大打开连接数
	MaxIdleConns int           // 最大空闲连接数
	MaxLifetime  time.Duration // 连接最大生命周期
	BusyTimeout  time.Duration // 写锁等待时间，API与任务工作者会并发写入
}

// DefaultConfig 返回默认数据库配置
func DefaultConfig() *Config {
	return &Config{
		Type:         "sqlite",
		DSN:          "data/nerf.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
		BusyTimeout:  5 * time.Second,
	}
}

// Setup 打开数据库连接并迁移文档表
func Setup(cfg *Config, log *logrus.Logger) error {
	if cfg.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err := ensureDir(cfg.DSN); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	gormLogger := logger.New(
		&logrusWriter{log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.AutoMigrate(&models.Document{}); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	DB = db
	log.WithField("dsn", cfg.DSN).Info("Database connection established successfully")
	return nil
}

// MustDB 返回全局数据库连接，未初始化时panic
func MustDB() *gorm.DB {
	if DB == nil {
		panic("database not initialized, call database.Setup first")
	}
	return DB
}

// Close 关闭数据库连接
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// sqliteDSN 为文件数据库补充WAL与busy timeout参数，已带参数的DSN原样使用
func sqliteDSN(cfg *Config) string {
	if strings.Contains(cfg.DSN, "?") || isMemoryDSN(cfg.DSN) {
		return cfg.DSN
	}
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", cfg.DSN, timeout.Milliseconds())
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}

// ensureDir 确保数据库文件所在目录存在
func ensureDir(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// logrusWriter 将GORM日志转发到logrus
type logrusWriter struct {
	logger *logrus.Logger
}

// Printf 实现logger.Writer接口
func (w *logrusWriter) Printf(format string, args ...interface{}) {
	w.logger.WithField("component", "gorm").Warnf(format, args...)
}
