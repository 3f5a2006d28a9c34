package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyerfyer/nerf-processor/internal/document"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// ProcessTaskHandler 文档处理任务处理器
// 在worker中执行队列里的文档处理任务
type ProcessTaskHandler struct {
	service *DocumentService
	logger  *logrus.Logger
}

// NewProcessTaskHandler 创建文档处理任务处理器
func NewProcessTaskHandler(service *DocumentService, logger *logrus.Logger) *ProcessTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProcessTaskHandler{
		service: service,
		logger:  logger,
	}
}

// GetTaskTypes 返回支持的任务类型
func (h *ProcessTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskProcessDocument}
}

// ProcessTask 执行文档处理流水线
// 重试无法恢复的错误会被标记为跳过重试
func (h *ProcessTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.ProcessDocumentPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %v: %w", err, taskqueue.ErrSkipRetry)
	}
	if payload.DocumentID == "" {
		payload.DocumentID = task.DocumentID
	}

	log := h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"doc_id":  payload.DocumentID,
		"attempt": task.Attempts,
	})
	log.Info("Processing document task")

	result, err := h.service.ProcessQueued(ctx, payload.DocumentID)
	if err != nil {
		log.WithError(err).Error("Document task failed")
		if permanent(err) {
			return result, fmt.Errorf("%v: %w", err, taskqueue.ErrSkipRetry)
		}
		return result, err
	}

	return result, nil
}

// permanent 判断错误是否重试也无法恢复
func permanent(err error) bool {
	return errors.Is(err, models.ErrDocumentNotFound) ||
		errors.Is(err, models.ErrInvalidDocumentStatus) ||
		errors.Is(err, document.ErrUnsupportedType) ||
		errors.Is(err, document.ErrEmptyPage)
}
