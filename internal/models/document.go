package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档处理状态类型
type DocumentStatus string

const (
	// DocStatusUploaded 文档已上传，等待处理
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 文档处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage 文档处理阶段
type ProcessStage string

const (
	// StageExtracting 文本提取阶段
	StageExtracting ProcessStage = "extracting"
	// StageRecognizing 实体识别与清洗阶段
	StageRecognizing ProcessStage = "recognizing"
	// StageSummarizing 摘要生成阶段
	StageSummarizing ProcessStage = "summarizing"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// Artifact 文档产物标记
type Artifact string

const (
	// ArtifactText 已生成文本
	ArtifactText Artifact = "text"
	// ArtifactEntities 已生成实体
	ArtifactEntities Artifact = "entities"
	// ArtifactSummary 已生成摘要
	ArtifactSummary Artifact = "summary"
)

// Document 文档数据模型
// 记录上传文件以及处理流水线的进度和产物
type Document struct {
	ID               string         `gorm:"primaryKey"`             // 文档ID，主键
	FileName         string         `gorm:"not null;index"`         // 原始文件名
	FileType         string         `gorm:"not null"`               // 文件类型
	FilePath         string         `gorm:"not null"`               // 存储路径
	FileSize         int64          `gorm:"not null"`               // 文件大小（字节）
	Status           DocumentStatus `gorm:"not null;index"`         // 处理状态
	UploadedAt       time.Time      `gorm:"not null;index"`         // 上传时间
	ProcessedAt      *time.Time     `gorm:"index"`                  // 处理完成时间
	UpdatedAt        time.Time      `gorm:"not null"`               // 更新时间
	Error            string         `gorm:"type:text"`              // 错误信息
	CurrentStage     ProcessStage   `gorm:"size:20"`                // 当前处理阶段
	CurrentTaskID    string         `gorm:"size:50;index"`          // 当前关联的任务ID
	EntityCount      int            `gorm:"not null;default:0"`     // 清洗后实体数量
	TextProcessed    bool           `gorm:"not null;default:false"` // 文本产物是否存在
	NERProcessed     bool           `gorm:"not null;default:false"` // 实体产物是否存在
	SummaryProcessed bool           `gorm:"not null;default:false"` // 摘要产物是否存在
	RetryCount       int            `gorm:"default:0"`              // 重新处理次数
	Metadata         datatypes.JSON `gorm:"type:json"`              // 元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// HasArtifact 判断指定产物是否已生成
func (d *Document) HasArtifact(a Artifact) bool {
	switch a {
	case ArtifactText:
		return d.TextProcessed
	case ArtifactEntities:
		return d.NERProcessed
	case ArtifactSummary:
		return d.SummaryProcessed
	}
	return false
}

// ArtifactColumn 返回产物标记对应的数据库列
func ArtifactColumn(a Artifact) (string, bool) {
	switch a {
	case ArtifactText:
		return "text_processed", true
	case ArtifactEntities:
		return "ner_processed", true
	case ArtifactSummary:
		return "summary_processed", true
	}
	return "", false
}
