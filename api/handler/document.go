package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fyerfyer/nerf-processor/api/middleware"
	"github.com/fyerfyer/nerf-processor/api/model"
	"github.com/fyerfyer/nerf-processor/internal/artifact"
	"github.com/fyerfyer/nerf-processor/internal/document"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/internal/services"
	"github.com/fyerfyer/nerf-processor/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// artifactContentTypes 产物下载时的内容类型
var artifactContentTypes = map[artifact.Kind]string{
	artifact.KindText:     "text/plain; charset=utf-8",
	artifact.KindEntities: "application/json; charset=utf-8",
	artifact.KindSummary:  "text/plain; charset=utf-8",
}

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document upload request")
		middleware.HandleError(c, middleware.NewValidationError("file is required", err.Error()))
		return
	}

	// process也可以通过查询参数传入
	if !req.Process {
		req.Process, _ = strconv.ParseBool(c.Query("process"))
	}

	filename := req.File.Filename
	if !document.IsSupported(filename) {
		middleware.HandleError(c, fmt.Errorf("%w: %s", document.ErrUnsupportedType, filename))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), file, filename)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.DocumentUploadResponse{
		FileID:   doc.ID,
		FileName: doc.FileName,
		Status:   string(doc.Status),
	}

	if req.Process {
		taskID, err := h.documentService.ProcessDocument(c.Request.Context(), doc.ID)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		resp.TaskID = taskID
		resp.Status = h.currentStatus(c, doc.ID)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = models.DocumentStatus(req.Status)
	}
	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}
	if req.Artifact != "" {
		filters["artifact"] = models.Artifact(req.Artifact)
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), req.Offset(), req.GetPageSize(), filters)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	infos := make([]model.DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, model.NewDocumentInfo(doc))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: infos,
	}))
}

// GetDocument 获取文档状态和产物信息
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// ProcessDocument 触发文档处理，wait参数在异步模式下等待处理结束
// POST /api/documents/:id/process?wait=30s
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
		return
	}

	var query model.ProcessRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid wait duration"))
		return
	}

	taskID, err := h.documentService.ProcessDocument(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Error("Failed to process document")
		middleware.HandleError(c, err)
		return
	}

	if taskID == "" {
		c.JSON(http.StatusOK, model.NewSuccessResponse(model.ProcessResponse{
			FileID: req.ID,
			Status: h.currentStatus(c, req.ID),
		}))
		return
	}

	docStatus := h.currentStatus(c, req.ID)
	if wait := query.GetWait(); wait > 0 {
		doc, err := h.documentService.WaitForDocumentProcessing(c.Request.Context(), req.ID, wait)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		docStatus = string(doc.Status)
	}

	status := http.StatusAccepted
	if docStatus == string(models.DocStatusCompleted) || docStatus == string(models.DocStatusFailed) {
		status = http.StatusOK
	}

	c.JSON(status, model.NewSuccessResponse(model.ProcessResponse{
		FileID: req.ID,
		Status: docStatus,
		TaskID: taskID,
	}))
}

// GetProfile 返回文档的分类实体和摘要
// GET /api/documents/:id/profile
func (h *DocumentHandler) GetProfile(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
		return
	}

	profile, err := h.documentService.GetProfile(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ProfileResponse{
		FileID:  profile.DocumentID,
		Profile: profile.Profile,
		Summary: profile.Summary,
	}))
}

// DownloadFile 下载上传的原始文件
// GET /api/documents/:id/file
func (h *DocumentHandler) DownloadFile(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
		return
	}

	reader, doc, err := h.documentService.OpenUpload(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer reader.Close()

	serveReader(c, reader, doc.FileName, storage.MimeType(doc.FileName))
}

// GetArtifact 返回下载指定产物的处理函数
// GET /api/documents/:id/text | entities | summary
func (h *DocumentHandler) GetArtifact(kind artifact.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.DocumentIDRequest
		if err := c.ShouldBindUri(&req); err != nil {
			middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
			return
		}

		reader, name, err := h.documentService.OpenArtifact(c.Request.Context(), req.ID, kind)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		defer reader.Close()

		serveReader(c, reader, name, artifactContentTypes[kind])
	}
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id"))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"file_id": req.ID,
		}).Error("Failed to delete document")
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success: true,
		FileID:  req.ID,
	}))
}

// currentStatus 读取文档最新状态，读取失败时返回空字符串
func (h *DocumentHandler) currentStatus(c *gin.Context, docID string) string {
	doc, err := h.documentService.GetDocument(c.Request.Context(), docID)
	if err != nil {
		return ""
	}
	return string(doc.Status)
}

// serveReader 以附件形式输出文件内容
func serveReader(c *gin.Context, reader io.Reader, filename, contentType string) {
	c.DataFromReader(http.StatusOK, -1, contentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", filename),
	})
}
