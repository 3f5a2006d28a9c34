package model

import (
	"time"

	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	FileID   string `json:"file_id"`           // 文件ID
	FileName string `json:"filename"`          // 文件名
	Status   string `json:"status"`            // 文档状态
	TaskID   string `json:"task_id,omitempty"` // 异步处理任务ID
}

// ArtifactFlags 各产物是否已生成
type ArtifactFlags struct {
	Text     bool `json:"text"`     // 文本
	Entities bool `json:"entities"` // 实体
	Summary  bool `json:"summary"`  // 摘要
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	FileID      string        `json:"file_id"`                // 文件ID
	FileName    string        `json:"filename"`               // 文件名
	FileType    string        `json:"file_type"`              // 文件类型
	FileSize    int64         `json:"file_size"`              // 文件大小
	Status      string        `json:"status"`                 // 处理状态
	Stage       string        `json:"stage,omitempty"`        // 当前处理阶段
	Error       string        `json:"error,omitempty"`        // 错误信息（如果有）
	EntityCount int           `json:"entity_count"`           // 清洗后实体数量
	RetryCount  int           `json:"retry_count"`            // 重新处理次数
	TaskID      string        `json:"task_id,omitempty"`      // 当前关联任务ID
	Processed   ArtifactFlags `json:"processed"`              // 产物标记
	UploadTime  time.Time     `json:"upload_time"`            // 上传时间
	UpdatedAt   time.Time     `json:"updated_at"`             // 更新时间
	ProcessedAt *time.Time    `json:"processed_at,omitempty"` // 处理结束时间
}

// NewDocumentInfo 将文档模型转换为响应结构
func NewDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		FileID:      doc.ID,
		FileName:    doc.FileName,
		FileType:    doc.FileType,
		FileSize:    doc.FileSize,
		Status:      string(doc.Status),
		Stage:       string(doc.CurrentStage),
		Error:       doc.Error,
		EntityCount: doc.EntityCount,
		RetryCount:  doc.RetryCount,
		TaskID:      doc.CurrentTaskID,
		Processed: ArtifactFlags{
			Text:     doc.TextProcessed,
			Entities: doc.NERProcessed,
			Summary:  doc.SummaryProcessed,
		},
		UploadTime:  doc.UploadedAt,
		UpdatedAt:   doc.UpdatedAt,
		ProcessedAt: doc.ProcessedAt,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// ProcessResponse 触发处理的响应
type ProcessResponse struct {
	FileID string `json:"file_id"`           // 文档ID
	Status string `json:"status"`            // 处理后的文档状态
	TaskID string `json:"task_id,omitempty"` // 异步处理任务ID
}

// ProfileResponse 文档分类画像
type ProfileResponse struct {
	FileID  string              `json:"file_id"` // 文档ID
	Profile map[string][]string `json:"profile"` // 按类别分组的实体
	Summary string              `json:"summary"` // 摘要，尚未生成时为空
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	FileID  string `json:"file_id"` // 文件ID
}

// TaskResponse 任务状态响应
type TaskResponse struct {
	TaskID      string                           `json:"task_id"`                // 任务ID
	Type        string                           `json:"type"`                   // 任务类型
	DocumentID  string                           `json:"document_id"`            // 文档ID
	Status      string                           `json:"status"`                 // 任务状态
	Error       string                           `json:"error,omitempty"`        // 错误信息
	Attempts    int                              `json:"attempts"`               // 尝试次数
	Result      *taskqueue.ProcessDocumentResult `json:"result,omitempty"`       // 处理结果
	CreatedAt   time.Time                        `json:"created_at"`             // 创建时间
	UpdatedAt   time.Time                        `json:"updated_at"`             // 更新时间
	CompletedAt *time.Time                       `json:"completed_at,omitempty"` // 完成时间
}

// NewTaskResponse 将任务转换为响应结构
func NewTaskResponse(task *taskqueue.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:      task.ID,
		Type:        string(task.Type),
		DocumentID:  task.DocumentID,
		Status:      string(task.Status),
		Error:       task.Error,
		Attempts:    task.Attempts,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		CompletedAt: task.CompletedAt,
	}

	if len(task.Result) > 0 {
		var result taskqueue.ProcessDocumentResult
		if err := taskqueue.UnmarshalPayload(task.Result, &result); err == nil {
			resp.Result = &result
		}
	}
	return resp
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string `json:"status"` // 服务状态
	Async  bool   `json:"async"`  // 是否启用异步处理
}
