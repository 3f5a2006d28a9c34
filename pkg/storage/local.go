package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储
// 文件按上传日期分目录保存为 <yyyy>/<mm>/<dd>/<id><ext>，
// 启动时扫描一次目录建立 id 到相对路径的索引
type LocalStorage struct {
	basePath string

	mu    sync.RWMutex
	index map[string]string
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储根目录
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.Path == "" {
		cfg.Path = "uploads"
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &LocalStorage{
		basePath: absPath,
		index:    make(map[string]string),
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save 保存文件，返回的ID用作文档ID
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	relPath := filepath.Join(time.Now().Format("2006/01/02"), id+strings.ToLower(filepath.Ext(filename)))
	fullPath := filepath.Join(s.basePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	s.mu.Lock()
	s.index[id] = relPath
	s.mu.Unlock()

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: MimeType(filename),
		Path:     relPath,
	}, nil
}

// Get 打开文件
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	fullPath, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		s.forget(id)
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(id string) error {
	fullPath, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.forget(id)
	return nil
}

// List 列出所有文件，按存储路径排序
func (s *LocalStorage) List() ([]FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]FileInfo, 0, len(s.index))
	for id, relPath := range s.index {
		stat, err := os.Stat(filepath.Join(s.basePath, relPath))
		if err != nil {
			continue
		}
		name := filepath.Base(relPath)
		files = append(files, FileInfo{
			ID:       id,
			Name:     name,
			Size:     stat.Size(),
			MimeType: MimeType(name),
			Path:     relPath,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	fullPath, err := s.lookup(id)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStorage) lookup(id string) (string, error) {
	s.mu.RLock()
	relPath, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return "", notFound(id)
	}
	return filepath.Join(s.basePath, relPath), nil
}

func (s *LocalStorage) forget(id string) {
	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()
}

// rebuildIndex 扫描存储目录，文件名去掉扩展名即为ID
func (s *LocalStorage) rebuildIndex() error {
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		name := d.Name()
		s.index[strings.TrimSuffix(name, filepath.Ext(name))] = relPath
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index storage directory: %w", err)
	}
	return nil
}

// MimeType 根据扩展名返回支持的文档类型的MIME类型
func MimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
