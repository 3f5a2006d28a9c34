package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/internal/repository"
	"github.com/sirupsen/logrus"
)

// validTransitions 文档状态机
var validTransitions = map[models.DocumentStatus][]models.DocumentStatus{
	models.DocStatusUploaded: {
		models.DocStatusProcessing,
		models.DocStatusFailed,
	},
	models.DocStatusProcessing: {
		models.DocStatusCompleted,
		models.DocStatusFailed,
	},
	// 已完成或失败的文档可以重新处理
	models.DocStatusCompleted: {models.DocStatusProcessing},
	models.DocStatusFailed:    {models.DocStatusProcessing},
}

// DocumentStatusManager 文档状态管理器
// 负责管理文档处理的生命周期状态
type DocumentStatusManager struct {
	repo   repository.DocumentRepository // 文档仓储接口
	logger *logrus.Logger                // 日志记录器
	mu     sync.Mutex                    // 互斥锁，保证状态转换的原子性
}

// NewDocumentStatusManager 创建文档状态管理器
func NewDocumentStatusManager(repo repository.DocumentRepository, logger *logrus.Logger) *DocumentStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &DocumentStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 创建文档记录并标记为已上传
func (m *DocumentStatusManager) MarkAsUploaded(ctx context.Context, docID string, fileName string, filePath string, fileSize int64) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"filename": fileName,
	}).Info("Marking document as uploaded")

	now := time.Now()
	doc := &models.Document{
		ID:         docID,
		FileName:   fileName,
		FileType:   getFileType(fileName),
		FilePath:   filePath,
		FileSize:   fileSize,
		Status:     models.DocStatusUploaded,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	if err := m.repo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	return doc, nil
}

// MarkAsProcessing 将文档标记为处理中状态
// 已完成或失败的文档重新处理时累加重试次数
func (m *DocumentStatusManager) MarkAsProcessing(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusProcessing); err != nil {
		return fmt.Errorf("document %s: %w", docID, err)
	}

	m.logger.WithField("doc_id", docID).Info("Marking document as processing")

	if doc.Status != models.DocStatusUploaded {
		doc.RetryCount++
	}
	doc.Status = models.DocStatusProcessing
	doc.Error = ""
	doc.CurrentStage = ""
	doc.ProcessedAt = nil
	return m.repo.Update(doc)
}

// SetStage 记录当前处理阶段
func (m *DocumentStatusManager) SetStage(ctx context.Context, docID string, stage models.ProcessStage) error {
	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"stage":  stage,
	}).Debug("Document entered stage")

	return m.repo.UpdateStage(docID, stage)
}

// RecordArtifact 标记产物已生成
func (m *DocumentStatusManager) RecordArtifact(ctx context.Context, docID string, artifact models.Artifact) error {
	return m.repo.MarkArtifact(docID, artifact, true)
}

// MarkAsCompleted 将文档标记为处理完成状态
func (m *DocumentStatusManager) MarkAsCompleted(ctx context.Context, docID string, entityCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusCompleted); err != nil {
		return fmt.Errorf("document %s: %w", docID, err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":       docID,
		"entity_count": entityCount,
	}).Info("Marking document as completed")

	if err := m.repo.SetEntityCount(docID, entityCount); err != nil {
		return err
	}
	if err := m.repo.UpdateStage(docID, models.StageCompleted); err != nil {
		return err
	}
	return m.repo.UpdateStatus(docID, models.DocStatusCompleted, "")
}

// MarkAsFailed 将文档标记为处理失败状态
func (m *DocumentStatusManager) MarkAsFailed(ctx context.Context, docID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetByID(docID); err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"error":  errorMsg,
	}).Error("Marking document as failed")

	return m.repo.UpdateStatus(docID, models.DocStatusFailed, errorMsg)
}

// AttachTask 关联异步处理任务
func (m *DocumentStatusManager) AttachTask(ctx context.Context, docID string, taskID string) error {
	return m.repo.SetCurrentTask(docID, taskID)
}

// GetStatus 获取文档当前状态
func (m *DocumentStatusManager) GetStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return "", fmt.Errorf("failed to get document status: %w", err)
	}
	return doc.Status, nil
}

// GetDocument 获取完整的文档对象
func (m *DocumentStatusManager) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	return m.repo.GetByID(docID)
}

// ListDocuments 获取文档列表
func (m *DocumentStatusManager) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteDocument 删除文档状态记录
func (m *DocumentStatusManager) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("doc_id", docID).Info("Deleting document status record")
	return m.repo.Delete(docID)
}

// ValidateStateTransition 验证状态转换的有效性
func (m *DocumentStatusManager) ValidateStateTransition(from, to models.DocumentStatus) error {
	for _, validTo := range validTransitions[from] {
		if validTo == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", models.ErrInvalidDocumentStatus, from, to)
}

// getFileType 根据文件名获取文件类型
func getFileType(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}
