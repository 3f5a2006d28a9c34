package handler

import (
	"net/http"

	"github.com/fyerfyer/nerf-processor/api/middleware"
	"github.com/fyerfyer/nerf-processor/api/model"
	"github.com/fyerfyer/nerf-processor/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskHandler 处理任务相关的API请求
type TaskHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewTaskHandler 创建新的任务处理器
func NewTaskHandler(documentService *services.DocumentService) *TaskHandler {
	return &TaskHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// GetTaskStatus 获取任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	var req model.TaskIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("task id is required"))
		return
	}

	if !h.documentService.AsyncEnabled() {
		middleware.HandleError(c, middleware.NewNotFoundError("async processing is not enabled"))
		return
	}

	task, err := h.documentService.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithError(err).WithField("task_id", req.ID).Debug("Failed to get task")
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskResponse(task)))
}
