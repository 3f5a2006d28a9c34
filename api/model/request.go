package model

import (
	"mime/multipart"
	"time"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 返回分页偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File    *multipart.FileHeader `form:"file" binding:"required"` // 文件对象
	Process bool                  `form:"process"`                 // 上传后是否立即处理
}

// DocumentIDRequest 路径中的文档ID
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`                  // 开始时间
	EndTime   *time.Time `form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`                    // 结束时间
	Status    string     `form:"status" binding:"omitempty,oneof=uploaded processing completed failed"` // 文档状态
	FileName  string     `form:"file_name"`                                                           // 文件名模糊匹配
	Artifact  string     `form:"artifact" binding:"omitempty,oneof=text entities summary"`            // 只列出已生成该产物的文档
}

// ProcessRequest 触发处理的查询参数
type ProcessRequest struct {
	Wait time.Duration `form:"wait" binding:"omitempty,min=0"` // 异步处理时最多等待的时长，如 30s
}

// MaxProcessWait 同步等待的上限
const MaxProcessWait = 5 * time.Minute

// GetWait 返回截断到上限的等待时长
func (r *ProcessRequest) GetWait() time.Duration {
	if r.Wait > MaxProcessWait {
		return MaxProcessWait
	}
	return r.Wait
}

// TaskIDRequest 路径中的任务ID
type TaskIDRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}
