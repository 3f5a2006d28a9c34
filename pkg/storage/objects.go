package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// ObjectStore 按名称读写的对象存储，名称使用 / 分隔
// 用于保存处理产物，API进程和worker进程通过同一后端共享结果
type ObjectStore interface {
	// PutObject 写入对象，已存在则覆盖
	PutObject(name string, reader io.Reader) error

	// OpenObject 打开对象，不存在时返回 ErrNotFound
	OpenObject(name string) (io.ReadCloser, error)

	// RemoveObject 删除对象，不存在时不报错
	RemoveObject(name string) error

	// ObjectExists 检查对象是否存在
	ObjectExists(name string) (bool, error)
}

// ObjectsFor 返回与上传文件同一后端的对象存储
// 后端本身不支持按名称存取时，退回到 root 目录下的本地对象存储
func ObjectsFor(s Storage, root string) (ObjectStore, error) {
	if objects, ok := s.(ObjectStore); ok {
		return objects, nil
	}
	return NewLocalObjects(root)
}

// LocalObjects 本地目录中的对象存储
type LocalObjects struct {
	root string
}

// NewLocalObjects 创建以 root 为根目录的对象存储
func NewLocalObjects(root string) (*LocalObjects, error) {
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve object root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object root: %w", err)
	}
	return &LocalObjects{root: absRoot}, nil
}

// PutObject 先写临时文件再重命名，读者不会看到写了一半的对象
func (o *LocalObjects) PutObject(name string, reader io.Reader) error {
	target, err := o.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	_, err = io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), target)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	return nil
}

// OpenObject 打开对象
func (o *LocalObjects) OpenObject(name string) (io.ReadCloser, error) {
	target, err := o.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// RemoveObject 删除对象
func (o *LocalObjects) RemoveObject(name string) error {
	target, err := o.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// ObjectExists 检查对象是否存在
func (o *LocalObjects) ObjectExists(name string) (bool, error) {
	target, err := o.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// path 将对象名映射到根目录下，名称不能逃出根目录
func (o *LocalObjects) path(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	return filepath.Join(o.root, filepath.FromSlash(clean[1:])), nil
}
