package pyprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client 是Python推理服务的HTTP客户端接口
type Client interface {
	// Get 发送GET请求
	Get(ctx context.Context, path string, result interface{}) error
	// Post 发送POST请求
	Post(ctx context.Context, path string, data interface{}, result interface{}) error
	// GetConfig 获取客户端配置
	GetConfig() *PyServiceConfig
}

// HTTPClient 实现了Python服务的HTTP客户端
type HTTPClient struct {
	client  *http.Client
	config  *PyServiceConfig
	headers http.Header
	logger  *logrus.Logger
}

// APIError 推理服务返回的非2xx响应
type APIError struct {
	StatusCode int    `json:"status_code"`
	Path       string `json:"path"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("python service %s returned %d: %s", e.Path, e.StatusCode, e.Detail)
}

// Temporary 网关类错误通常是推理服务重启或模型加载中
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewClient 创建一个新的Python服务HTTP客户端
func NewClient(config *PyServiceConfig) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", "nerf-processor/1.0")

	return &HTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:  config,
		headers: headers,
		logger:  logrus.StandardLogger(),
	}, nil
}

// Get 发送GET请求到Python服务
func (c *HTTPClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.call(ctx, http.MethodGet, path, nil, result)
}

// Post 发送POST请求到Python服务
func (c *HTTPClient) Post(ctx context.Context, path string, data interface{}, result interface{}) error {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
	}
	return c.call(ctx, http.MethodPost, path, body, result)
}

// call 带重试的调用，网络错误和网关类错误会按线性退避重试
func (c *HTTPClient) call(ctx context.Context, method, path string, body []byte, result interface{}) error {
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.config.RetryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("request context canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		var retryable bool
		if retryable, err = c.do(ctx, method, path, body, result); err == nil || !retryable {
			return err
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"method":  method,
			"path":    path,
			"error":   err.Error(),
		}).Warn("Python service request failed")
	}
	return err
}

// do 执行一次请求，返回错误是否值得重试
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Detail:     errorDetail(payload),
		}
		return apiErr.Temporary(), apiErr
	}

	if result == nil || len(payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	return false, nil
}

// errorDetail 提取FastAPI风格的 detail 字段，可能是字符串或校验错误列表
func errorDetail(payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(payload))
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Loc []interface{} `json:"loc"`
		Msg string        `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			loc := make([]string, 0, len(item.Loc))
			for _, part := range item.Loc {
				loc = append(loc, fmt.Sprint(part))
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(loc, "."), item.Msg))
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}

// GetConfig 返回客户端配置
func (c *HTTPClient) GetConfig() *PyServiceConfig {
	return c.config
}

// WithHeader 添加自定义请求头
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	c.headers.Set(key, value)
	return c
}

// WithLogger 设置日志记录器
func (c *HTTPClient) WithLogger(logger *logrus.Logger) *HTTPClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}
