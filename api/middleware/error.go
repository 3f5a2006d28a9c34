package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/nerf-processor/api/model"
	"github.com/fyerfyer/nerf-processor/internal/artifact"
	"github.com/fyerfyer/nerf-processor/internal/document"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/pkg/storage"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在错误
	ErrorTypeConflict   = "CONFLICT_ERROR"   // 状态冲突错误
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // 错误代码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewConflictError 创建状态冲突错误
func NewConflictError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusConflict,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// FromError 将领域错误映射为应用错误
// 未识别的错误作为内部错误处理，只在调试模式下暴露详情
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		return NewNotFoundError("document not found")
	case errors.Is(err, artifact.ErrNotFound):
		return NewNotFoundError("artifact not generated yet")
	case errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError("file not found")
	case errors.Is(err, taskqueue.ErrTaskNotFound):
		return NewNotFoundError("task not found")
	case errors.Is(err, document.ErrUnsupportedType):
		return NewValidationError("unsupported file type, only .pdf, .txt and .md are accepted")
	case errors.Is(err, artifact.ErrUnknownKind):
		return NewValidationError("unknown artifact kind")
	case errors.Is(err, models.ErrInvalidDocumentStatus):
		return NewConflictError("document cannot be processed in its current state", err.Error())
	default:
		return NewInternalError("processing failed", err.Error())
	}
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)

				// 在开发环境中可以返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = GetTraceID(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// 取最后一个错误进行处理
		appErr := FromError(c.Errors.Last().Err)
		traceID := GetTraceID(c)

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			"trace_id":   traceID,
			"path":       c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID

		// 在开发环境下显示具体错误信息
		if gin.Mode() == gin.DebugMode && appErr.Details != "" {
			errResp.Message = appErr.Message + ": " + appErr.Details
		}

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
