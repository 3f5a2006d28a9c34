package api

import (
	"net/http"

	"github.com/fyerfyer/nerf-processor/api/handler"
	"github.com/fyerfyer/nerf-processor/api/middleware"
	"github.com/fyerfyer/nerf-processor/api/model"
	"github.com/fyerfyer/nerf-processor/internal/artifact"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	docHandler *handler.DocumentHandler,
	taskHandler *handler.TaskHandler,
	asyncEnabled bool,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(Cors())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 文档管理API
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 获取文档状态 - GET /api/documents/:id
			docGroup.GET("/:id", docHandler.GetDocument)

			// 触发处理 - POST /api/documents/:id/process
			docGroup.POST("/:id/process", docHandler.ProcessDocument)

			// 下载原始文件 - GET /api/documents/:id/file
			docGroup.GET("/:id/file", docHandler.DownloadFile)

			// 下载处理产物
			docGroup.GET("/:id/text", docHandler.GetArtifact(artifact.KindText))
			docGroup.GET("/:id/entities", docHandler.GetArtifact(artifact.KindEntities))
			docGroup.GET("/:id/summary", docHandler.GetArtifact(artifact.KindSummary))

			// 分类画像 - GET /api/documents/:id/profile
			docGroup.GET("/:id/profile", docHandler.GetProfile)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)
		}

		// 任务状态 - GET /api/tasks/:id
		api.GET("/tasks/:id", taskHandler.GetTaskStatus)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, model.NewSuccessResponse(model.HealthResponse{
				Status: "ok",
				Async:  asyncEnabled,
			}))
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
