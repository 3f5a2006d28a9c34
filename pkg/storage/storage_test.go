package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 创建测试文件辅助函数
func createTestFile(content string) (io.Reader, string) {
	return bytes.NewBufferString(content), fmt.Sprintf("resume-%d.txt", os.Getpid())
}

// 读取文件内容辅助函数
func readAll(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}

func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()
	localStorage, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	content := "John Smith\nData Scientist"
	reader, fileName := createTestFile(content)
	info, err := localStorage.Save(reader, fileName)
	require.NoError(t, err)

	t.Run("Save", func(t *testing.T) {
		assert.NotEmpty(t, info.ID)
		assert.Equal(t, fileName, info.Name)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, "text/plain", info.MimeType)
		assert.True(t, strings.HasSuffix(info.Path, info.ID+".txt"))
		assert.FileExists(t, filepath.Join(tempDir, info.Path))
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := localStorage.Get(info.ID)
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, content, readAll(rc))
	})

	t.Run("List", func(t *testing.T) {
		files, err := localStorage.List()
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, info.ID, files[0].ID)
		assert.Equal(t, info.Path, files[0].Path)
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := localStorage.Exists(info.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = localStorage.Exists("non-existent-id")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, localStorage.Delete(info.ID))

		exists, _ := localStorage.Exists(info.ID)
		assert.False(t, exists)

		_, err := localStorage.Get(info.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, localStorage.Delete(info.ID), ErrNotFound)
	})
}

func TestLocalStorage_RebuildsIndex(t *testing.T) {
	tempDir := t.TempDir()
	first, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	info, err := first.Save(strings.NewReader("%PDF-1.4"), "Resume.PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.MimeType)

	// 新实例应能通过扫描目录找到已有文件
	second, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	rc, err := second.Get(info.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "%PDF-1.4", readAll(rc))
}

func TestLocalStorage_FileRemovedOutOfBand(t *testing.T) {
	tempDir := t.TempDir()
	localStorage, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	info, err := localStorage.Save(strings.NewReader("notes"), "notes.md")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(tempDir, info.Path)))

	exists, err := localStorage.Exists(info.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = localStorage.Get(info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMinioStorage 测试MinIO存储实现
// 需要设置MINIO_TEST_ENDPOINT指向可用的MinIO服务
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set, skipping MinIO tests")
	}

	cfg := MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Bucket:    "nerf-test",
	}

	// 初始化MinIO存储
	minioStorage, err := NewMinioStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create MinIO storage: %v", err)
	}

	// 测试 Save 功能
	t.Run("Save", func(t *testing.T) {
		content := "Jane Doe\nSoftware Engineer at Acme"
		fileReader, fileName := createTestFile(content)

		info, err := minioStorage.Save(fileReader, fileName)
		if err != nil {
			t.Fatalf("Failed to save file to MinIO: %v", err)
		}

		if info.ID == "" {
			t.Error("Returned file ID should not be empty")
		}

		if info.Name != fileName {
			t.Errorf("File name should be %s, got %s", fileName, info.Name)
		}
	})

	// 保存一个文件用于后续测试
	content := "John Smith\nData Scientist"
	reader, fileName := createTestFile(content)
	fileInfo, err := minioStorage.Save(reader, fileName)
	if err != nil {
		t.Fatalf("Failed to save test file to MinIO: %v", err)
	}

	// 测试 Get 功能
	t.Run("Get", func(t *testing.T) {
		reader, err := minioStorage.Get(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to get file from MinIO: %v", err)
		}
		defer reader.Close()

		retrievedContent := readAll(reader)
		if retrievedContent != content {
			t.Errorf("File content mismatch, expected: %s, got: %s", content, retrievedContent)
		}
	})

	// 测试 List 功能
	t.Run("List", func(t *testing.T) {
		files, err := minioStorage.List()
		if err != nil {
			t.Fatalf("Failed to list MinIO files: %v", err)
		}

		if len(files) < 1 {
			t.Error("There should be at least one file, but the list is empty")
		}

		found := false
		for _, file := range files {
			if file.ID == fileInfo.ID {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("Saved file ID not found: %s", fileInfo.ID)
		}
	})

	// 测试 Exists 功能
	t.Run("Exists", func(t *testing.T) {
		exists, err := minioStorage.Exists(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to check MinIO file existence: %v", err)
		}

		if !exists {
			t.Error("File should exist, but does not")
		}

		exists, err = minioStorage.Exists("non-existent-id")
		if err != nil {
			t.Fatalf("Failed to check non-existent file: %v", err)
		}

		if exists {
			t.Error("Non-existent file should return false, but got true")
		}
	})

	// 测试 Delete 功能
	t.Run("Delete", func(t *testing.T) {
		err := minioStorage.Delete(fileInfo.ID)
		if err != nil {
			t.Fatalf("Failed to delete MinIO file: %v", err)
		}

		// 确认文件已被删除
		exists, _ := minioStorage.Exists(fileInfo.ID)
		if exists {
			t.Error("File should have been deleted, but still exists")
		}
	})

	// 测试完成后清理测试桶
	cleanupTestBucket(t, minioStorage)
}

// cleanupTestBucket 清理测试桶中的所有对象
func cleanupTestBucket(t *testing.T, storage *MinioStorage) {
	t.Log("Cleaning up test bucket...")
	files, err := storage.List()
	if err != nil {
		t.Logf("Error listing objects for cleanup: %v", err)
		return
	}

	for _, file := range files {
		if err := storage.Delete(file.ID); err != nil {
			t.Logf("Failed to clean up object %s: %v", file.ID, err)
		}
	}
}

// TestStorageFactory 测试存储工厂函数
func TestStorageFactory(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "uploads")

		storage, err := New(Config{Type: "local", Local: LocalConfig{Path: tempDir}})
		if err != nil {
			t.Fatalf("Failed to create local storage: %v", err)
		}
		if _, ok := storage.(*LocalStorage); !ok {
			t.Fatalf("Expected *LocalStorage, got %T", storage)
		}

		// 验证存储路径已创建
		if _, err := os.Stat(tempDir); os.IsNotExist(err) {
			t.Errorf("Storage path was not created: %s", tempDir)
		}
	})

	t.Run("DefaultsToLocal", func(t *testing.T) {
		storage, err := New(Config{Local: LocalConfig{Path: t.TempDir()}})
		if err != nil {
			t.Fatalf("Failed to create default storage: %v", err)
		}
		if _, ok := storage.(*LocalStorage); !ok {
			t.Fatalf("Expected *LocalStorage, got %T", storage)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(Config{Type: "s3"}); err == nil {
			t.Fatal("Expected error for unsupported storage type")
		}
	})
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"resume.pdf":  "application/pdf",
		"Resume.PDF":  "application/pdf",
		"notes.md":    "text/markdown",
		"profile.txt": "text/plain",
		"photo.png":   "application/octet-stream",
	}
	for name, want := range tests {
		if got := MimeType(name); got != want {
			t.Errorf("MimeType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLocalObjects(t *testing.T) {
	root := t.TempDir()
	objects, err := NewLocalObjects(root)
	require.NoError(t, err)

	require.NoError(t, objects.PutObject("documents/ner/cv.json", strings.NewReader(`[]`)))
	assert.FileExists(t, filepath.Join(root, "documents", "ner", "cv.json"))

	exists, err := objects.ObjectExists("documents/ner/cv.json")
	require.NoError(t, err)
	assert.True(t, exists)

	// 覆盖写入
	require.NoError(t, objects.PutObject("documents/ner/cv.json", strings.NewReader(`[{"text":"Jane"}]`)))
	rc, err := objects.OpenObject("documents/ner/cv.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"text":"Jane"}]`, readAll(rc))
	rc.Close()

	entries, err := os.ReadDir(filepath.Join(root, "documents", "ner"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")

	require.NoError(t, objects.RemoveObject("documents/ner/cv.json"))
	require.NoError(t, objects.RemoveObject("documents/ner/cv.json"))

	_, err = objects.OpenObject("documents/ner/cv.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalObjects_StaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	objects, err := NewLocalObjects(filepath.Join(root, "artifacts"))
	require.NoError(t, err)

	require.NoError(t, objects.PutObject("../../escape.txt", strings.NewReader("x")))
	assert.FileExists(t, filepath.Join(root, "artifacts", "escape.txt"))
	assert.NoFileExists(t, filepath.Join(root, "escape.txt"))

	assert.Error(t, objects.PutObject("", strings.NewReader("x")))
}

func TestObjectsFor(t *testing.T) {
	local, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	objects, err := ObjectsFor(local, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &LocalObjects{}, objects)
}
