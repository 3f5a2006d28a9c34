package repository

import "github.com/fyerfyer/nerf-processor/internal/models"

// DocumentRepository 文档仓储接口
// 负责文档元数据与处理进度的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档
	Delete(id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateStage 更新文档当前处理阶段
	UpdateStage(id string, stage models.ProcessStage) error

	// MarkArtifact 标记产物是否已生成
	MarkArtifact(id string, artifact models.Artifact, present bool) error

	// SetEntityCount 记录清洗后的实体数量
	SetEntityCount(id string, count int) error

	// SetCurrentTask 关联当前处理任务
	SetCurrentTask(id string, taskID string) error
}
