package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectPrefix 按名称存取的对象放在该前缀下，与按ID保存的上传文件分开
const objectPrefix = "objects/"

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
	timeout    time.Duration // 单次操作超时
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string        // MinIO服务端点
	AccessKey string        // 访问密钥ID
	SecretKey string        // 秘密访问密钥
	UseSSL    bool          // 是否使用SSL
	Bucket    string        // 存储桶名称
	Timeout   time.Duration // 单次操作超时，默认30秒
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
		timeout:    cfg.Timeout,
	}

	// 检查存储桶是否存在，不存在则创建
	ctx, cancel := s.context()
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return s, nil
}

// Save 保存文件到MinIO存储
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	now := time.Now()
	objectName := fmt.Sprintf("%04d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), id, ext)
	contentType := MimeType(filename)

	ctx, cancel := s.context()
	defer cancel()

	// 大小未知时minio-go按分片流式上传
	info, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, -1,
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"filename": filepath.Base(filename)},
		})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 获取MinIO中的文件
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.findObject(id)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(context.Background(), s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return obj, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.findObject(id)
	if err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List 列出MinIO中的所有文件
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	ctx, cancel := s.context()
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		if strings.HasPrefix(object.Key, objectPrefix) {
			continue
		}
		files = append(files, objectFileInfo(object))
	}

	return files, nil
}

// Exists 检查MinIO中是否存在指定ID的文件
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.findObject(id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// findObject 根据ID查找对象名，找到后立即停止遍历
func (s *MinioStorage) findObject(id string) (string, error) {
	ctx, cancel := s.context()
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return "", fmt.Errorf("error listing objects: %w", object.Err)
		}
		if strings.HasPrefix(object.Key, objectPrefix) {
			continue
		}
		if objectFileInfo(object).ID == id {
			return object.Key, nil
		}
	}

	return "", notFound(id)
}

// PutObject 按名称写入对象
func (s *MinioStorage) PutObject(name string, reader io.Reader) error {
	ctx, cancel := s.context()
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucketName, objectPrefix+name, reader, -1,
		minio.PutObjectOptions{ContentType: MimeType(name)})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", name, err)
	}
	return nil
}

// OpenObject 按名称打开对象
func (s *MinioStorage) OpenObject(name string) (io.ReadCloser, error) {
	if exists, err := s.ObjectExists(name); err != nil {
		return nil, err
	} else if !exists {
		return nil, notFound(name)
	}

	obj, err := s.client.GetObject(context.Background(), s.bucketName, objectPrefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}
	return obj, nil
}

// RemoveObject 按名称删除对象
func (s *MinioStorage) RemoveObject(name string) error {
	ctx, cancel := s.context()
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucketName, objectPrefix+name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", name, err)
	}
	return nil
}

// ObjectExists 检查按名称保存的对象是否存在
func (s *MinioStorage) ObjectExists(name string) (bool, error) {
	ctx, cancel := s.context()
	defer cancel()

	_, err := s.client.StatObject(ctx, s.bucketName, objectPrefix+name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object %s: %w", name, err)
}

func (s *MinioStorage) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

var _ ObjectStore = (*MinioStorage)(nil)

// objectFileInfo 从对象信息中提取文件信息
func objectFileInfo(object minio.ObjectInfo) FileInfo {
	fileName := filepath.Base(object.Key)
	return FileInfo{
		ID:       strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		Name:     fileName,
		Size:     object.Size,
		MimeType: MimeType(object.Key),
		Path:     object.Key,
	}
}
