package middleware

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// traceIDKey 上下文中追踪ID的键
const traceIDKey = "TraceID"

// Logger 日志中间件
// 记录请求信息和响应时间
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.WithFields(logrus.Fields{
			FieldStatus:   c.Writer.Status(),
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
			FieldTraceID:  GetTraceID(c),
			"user_agent":  c.Request.UserAgent(),
		}).Info("HTTP request")
	}
}

// RequestBodyLog 请求体日志中间件
// 在DEBUG模式下记录请求体内容，multipart上传只记录长度
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.IsLevelEnabled(logrus.DebugLevel) && c.Request.Body != nil {
			if c.ContentType() == gin.MIMEMultipartPOSTForm {
				log.WithFields(logrus.Fields{
					FieldMethod:      c.Request.Method,
					FieldPath:        c.Request.URL.Path,
					"content_length": c.Request.ContentLength,
				}).Debug("Multipart request")
			} else {
				body, _ := io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewReader(body))

				if len(body) > 0 {
					log.WithFields(logrus.Fields{
						FieldMethod: c.Request.Method,
						FieldPath:   c.Request.URL.Path,
						"body":      string(body),
					}).Debug("Request body")
				}
			}
		}

		c.Next()
	}
}

// SetTraceID 将追踪ID设置到上下文和响应头中
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(traceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}

// GetTraceID 获取当前请求的追踪ID
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// 常用日志字段
const (
	FieldTraceID  = "trace_id"    // 追踪ID
	FieldPath     = "path"        // 请求路径
	FieldMethod   = "method"      // 请求方法
	FieldStatus   = "status_code" // 状态码
	FieldLatency  = "latency"     // 延迟时间
	FieldClientIP = "client_ip"   // 客户端IP
	FieldError    = "error"       // 错误信息
)

// GetLogger 返回API层共享的日志记录器
func GetLogger() *logrus.Logger {
	return log
}
