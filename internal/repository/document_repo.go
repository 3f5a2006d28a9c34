package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/database"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// docRepository 文档仓储实现
type docRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列
	ctx       context.Context // 上下文，可用于事务或超时控制
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithQueue 使用指定的数据库连接和任务队列创建文档仓储实例
// 删除文档时会一并清理队列中的相关任务
func NewDocumentRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，支持分页和筛选
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.DocumentStatus:
				if s != "" {
					query = query.Where("status = ?", string(s))
				}
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				statusStr := fmt.Sprintf("%v", status)
				if statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}

		// 产物过滤，例如只列出已有摘要的文档
		if artifact, ok := filters["artifact"].(models.Artifact); ok {
			if column, ok := models.ArtifactColumn(artifact); ok {
				query = query.Where(column+" = ?", true)
			}
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete 删除文档记录，并清理队列中的相关任务
func (r *docRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}

	if r.taskQueue != nil {
		ctx := r.getContext()
		tasks, err := r.taskQueue.GetTasksByDocument(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("document_id", id).Warn("Failed to list tasks of deleted document")
			return nil
		}
		for _, task := range tasks {
			// 任务可能已经被清理
			_ = r.taskQueue.DeleteTask(ctx, task.ID)
		}
	}

	return nil
}

// UpdateStatus 更新文档状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}

	if status == models.DocStatusCompleted || status == models.DocStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	return r.updateColumns(id, updates)
}

// UpdateStage 更新文档当前处理阶段
func (r *docRepository) UpdateStage(id string, stage models.ProcessStage) error {
	return r.updateColumns(id, map[string]interface{}{
		"current_stage": stage,
		"updated_at":    time.Now(),
	})
}

// MarkArtifact 标记产物是否已生成
func (r *docRepository) MarkArtifact(id string, artifact models.Artifact, present bool) error {
	column, ok := models.ArtifactColumn(artifact)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownArtifact, artifact)
	}
	return r.updateColumns(id, map[string]interface{}{
		column:       present,
		"updated_at": time.Now(),
	})
}

// SetEntityCount 记录清洗后的实体数量
func (r *docRepository) SetEntityCount(id string, count int) error {
	return r.updateColumns(id, map[string]interface{}{
		"entity_count": count,
		"updated_at":   time.Now(),
	})
}

// SetCurrentTask 关联当前处理任务
func (r *docRepository) SetCurrentTask(id string, taskID string) error {
	return r.updateColumns(id, map[string]interface{}{
		"current_task_id": taskID,
		"updated_at":      time.Now(),
	})
}

// updateColumns 按列更新，文档不存在时返回ErrDocumentNotFound
func (r *docRepository) updateColumns(id string, updates map[string]interface{}) error {
	result := r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// WithContext 创建带有上下文的仓储
func (r *docRepository) WithContext(ctx context.Context) DocumentRepository {
	return &docRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}

// getContext 获取仓储的上下文，如果未设置则使用背景上下文
func (r *docRepository) getContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}
