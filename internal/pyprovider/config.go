package pyprovider

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultNERPath 实体识别接口路径
	DefaultNERPath = "/python/ner"
	// DefaultSummarizePath 摘要接口路径
	DefaultSummarizePath = "/python/summarize"
)

// PyServiceConfig Python推理服务（NER与摘要模型）的连接配置
type PyServiceConfig struct {
	BaseURL       string        // 服务基础URL，例如 http://localhost:8000/api
	NERPath       string        // 实体识别接口路径
	SummarizePath string        // 摘要接口路径
	Timeout       time.Duration // 单次请求超时，模型推理较慢，默认60秒
	MaxRetries    int           // 网络错误最大重试次数
	RetryDelay    time.Duration // 重试基础间隔，按次数线性增长
	DialTimeout   time.Duration // 建立连接超时
	EnableTLS     bool          // 为true时要求BaseURL使用https
}

// DefaultConfig 返回默认配置
func DefaultConfig() *PyServiceConfig {
	return &PyServiceConfig{
		BaseURL:       "http://localhost:8000/api",
		NERPath:       DefaultNERPath,
		SummarizePath: DefaultSummarizePath,
		Timeout:       60 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
		DialTimeout:   5 * time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *PyServiceConfig) WithBaseURL(baseURL string) *PyServiceConfig {
	c.BaseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithEndpoints 设置实体识别与摘要接口路径
func (c *PyServiceConfig) WithEndpoints(nerPath, summarizePath string) *PyServiceConfig {
	c.NERPath = nerPath
	c.SummarizePath = summarizePath
	return c
}

// WithTimeout 设置请求超时时间
func (c *PyServiceConfig) WithTimeout(timeout time.Duration) *PyServiceConfig {
	c.Timeout = timeout
	return c
}

// WithRetry 设置重试参数
func (c *PyServiceConfig) WithRetry(maxRetries int, retryDelay time.Duration) *PyServiceConfig {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}

// WithTLS 设置是否要求TLS
func (c *PyServiceConfig) WithTLS(enable bool) *PyServiceConfig {
	c.EnableTLS = enable
	return c
}

// Validate 校验配置并补全缺省的接口路径
func (c *PyServiceConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("python service base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid python service base url: %q", c.BaseURL)
	}
	if c.EnableTLS && u.Scheme != "https" {
		return fmt.Errorf("python service base url must use https when TLS is enabled: %q", c.BaseURL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	if c.NERPath == "" {
		c.NERPath = DefaultNERPath
	}
	if c.SummarizePath == "" {
		c.SummarizePath = DefaultSummarizePath
	}
	return nil
}
