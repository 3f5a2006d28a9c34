package storage

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID       string // 文件唯一标识符
	Name     string // 原始文件名
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型(可选)
	Path     string // 内部存储路径(实现相关)
}

// Storage 文件存储接口
// 保存上传的原始文档，可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 保存文件并返回文件信息
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get 获取文件内容
	Get(id string) (io.ReadCloser, error)

	// Delete 删除文件
	Delete(id string) error

	// List 列出所有文件
	List() ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(id string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string      // 存储类型：local 或 minio
	Local LocalConfig // 本地存储配置
	Minio MinioConfig // MinIO存储配置
}

// New 根据配置创建存储实现
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// notFound 构造带ID的不存在错误
func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
