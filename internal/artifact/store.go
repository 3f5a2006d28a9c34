package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/fyerfyer/nerf-processor/pkg/storage"
)

// Kind 产物类型
type Kind string

const (
	// KindText 提取出的文本
	KindText Kind = "text"
	// KindEntities 清洗后的实体JSON
	KindEntities Kind = "entities"
	// KindSummary 摘要文本
	KindSummary Kind = "summary"
)

// Kinds 所有产物类型
var Kinds = []Kind{KindText, KindEntities, KindSummary}

// ErrUnknownKind 未知的产物类型
var ErrUnknownKind = errors.New("unknown artifact kind")

// ErrNotFound 产物不存在
var ErrNotFound = errors.New("artifact not found")

// ParseKind 将字符串解析为产物类型
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
}

// Config 产物目录配置，目录是对象存储中的相对前缀
type Config struct {
	TextDir    string
	EntityDir  string
	SummaryDir string
}

// DefaultConfig 返回默认目录配置
func DefaultConfig() Config {
	return Config{
		TextDir:    "documents/txt",
		EntityDir:  "documents/ner",
		SummaryDir: "documents/summary",
	}
}

// ArtifactName 根据上传文件名生成产物文件名
// resume.pdf -> resume.txt / resume.json / resume.summary.txt
func ArtifactName(kind Kind, filename string) (string, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	switch kind {
	case KindText:
		return base + ".txt", nil
	case KindEntities:
		return base + ".json", nil
	case KindSummary:
		return base + ".summary.txt", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Store 在对象存储中读写处理产物
// 与上传文件使用同一后端，worker写入的产物API进程可以直接读取
type Store struct {
	objects storage.ObjectStore
	dirs    map[Kind]string
}

// NewStore 创建产物存储
func NewStore(objects storage.ObjectStore, cfg Config) (*Store, error) {
	if objects == nil {
		return nil, errors.New("artifact store requires an object store")
	}

	defaults := DefaultConfig()
	if cfg.TextDir == "" {
		cfg.TextDir = defaults.TextDir
	}
	if cfg.EntityDir == "" {
		cfg.EntityDir = defaults.EntityDir
	}
	if cfg.SummaryDir == "" {
		cfg.SummaryDir = defaults.SummaryDir
	}

	s := &Store{objects: objects, dirs: make(map[Kind]string, len(Kinds))}
	for kind, dir := range map[Kind]string{
		KindText:     cfg.TextDir,
		KindEntities: cfg.EntityDir,
		KindSummary:  cfg.SummaryDir,
	} {
		prefix := path.Clean(filepath.ToSlash(dir))
		if path.IsAbs(prefix) || prefix == ".." || strings.HasPrefix(prefix, "../") {
			return nil, fmt.Errorf("%s artifact dir must be a relative path: %s", kind, dir)
		}
		s.dirs[kind] = prefix
	}
	return s, nil
}

// ObjectName 返回产物在对象存储中的名称
func (s *Store) ObjectName(kind Kind, key string) (string, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	name, err := ArtifactName(kind, key)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name), nil
}

// Exists 判断产物是否已生成
func (s *Store) Exists(kind Kind, key string) (bool, error) {
	name, err := s.ObjectName(kind, key)
	if err != nil {
		return false, err
	}
	return s.objects.ObjectExists(name)
}

// WriteText 写入提取的文本
func (s *Store) WriteText(key, text string) error {
	return s.write(KindText, key, []byte(text))
}

// WriteEntities 以JSON数组写入实体
func (s *Store) WriteEntities(key string, entities []ner.Entity) error {
	if entities == nil {
		entities = []ner.Entity{}
	}
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entities: %w", err)
	}
	return s.write(KindEntities, key, data)
}

// ReadEntities 读取实体JSON
func (s *Store) ReadEntities(key string) ([]ner.Entity, error) {
	data, err := s.read(KindEntities, key)
	if err != nil {
		return nil, err
	}
	var entities []ner.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	return entities, nil
}

// WriteSummary 写入摘要
func (s *Store) WriteSummary(key, summaryText string) error {
	return s.write(KindSummary, key, []byte(summaryText))
}

// ReadSummary 读取摘要
func (s *Store) ReadSummary(key string) (string, error) {
	data, err := s.read(KindSummary, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Open 打开产物用于下载
func (s *Store) Open(kind Kind, key string) (io.ReadCloser, error) {
	name, err := s.ObjectName(kind, key)
	if err != nil {
		return nil, err
	}
	rc, err := s.objects.OpenObject(name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path.Base(name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s artifact: %w", kind, err)
	}
	return rc, nil
}

// Remove 删除该文档的所有产物，不存在的产物忽略
func (s *Store) Remove(key string) error {
	for _, kind := range Kinds {
		name, err := s.ObjectName(kind, key)
		if err != nil {
			return err
		}
		if err := s.objects.RemoveObject(name); err != nil {
			return fmt.Errorf("failed to remove %s artifact: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) write(kind Kind, key string, data []byte) error {
	name, err := s.ObjectName(kind, key)
	if err != nil {
		return err
	}
	if err := s.objects.PutObject(name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}
	return nil
}

func (s *Store) read(kind Kind, key string) ([]byte, error) {
	rc, err := s.Open(kind, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", kind, err)
	}
	return data, nil
}
