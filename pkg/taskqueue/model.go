package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskProcessDocument 文档处理流水线任务：提取、实体识别、摘要
	TaskProcessDocument TaskType = "process_document"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// Done 任务是否已结束
func (t *Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// ProcessDocumentPayload 文档处理任务载荷
type ProcessDocumentPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
	FileName   string `json:"file_name"`   // 上传时的文件名，决定产物文件名
}

// ProcessDocumentResult 文档处理任务结果
type ProcessDocumentResult struct {
	DocumentID    string `json:"document_id"`    // 文档ID
	TextLength    int    `json:"text_length"`    // 提取文本长度
	EntityCount   int    `json:"entity_count"`   // 清洗后实体数量
	SummaryLength int    `json:"summary_length"` // 摘要长度
	Error         string `json:"error,omitempty"`
}
