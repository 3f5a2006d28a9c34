package pyprovider

import (
	"context"

	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/pkg/errors"
)

// DefaultSummarizationModel 默认摘要模型
const DefaultSummarizationModel = "facebook/bart-large-cnn"

// SummarizeRequest 表示摘要请求
type SummarizeRequest struct {
	Text      string `json:"text"`
	Model     string `json:"model,omitempty"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
	DoSample  bool   `json:"do_sample"`
}

// SummarizeResponse 表示摘要响应
type SummarizeResponse struct {
	SummaryText    string  `json:"summary_text"`
	Model          string  `json:"model"`
	ProcessingTime float64 `json:"processing_time"`
}

// SummarizeClient 是Python摘要服务的客户端
type SummarizeClient struct {
	client Client
	model  string
}

// NewSummarizeClient 创建摘要客户端
func NewSummarizeClient(client Client, model string) *SummarizeClient {
	if model == "" {
		model = DefaultSummarizationModel
	}
	return &SummarizeClient{
		client: client,
		model:  model,
	}
}

// Model 返回使用的模型名称
func (c *SummarizeClient) Model() string {
	return c.model
}

// Summarize 生成摘要，返回模型输出原文
func (c *SummarizeClient) Summarize(ctx context.Context, text string, opts summary.Options) (string, error) {
	req := SummarizeRequest{
		Text:      text,
		Model:     c.model,
		MaxLength: opts.MaxLength,
		MinLength: opts.MinLength,
		DoSample:  opts.DoSample,
	}

	var response SummarizeResponse
	if err := c.client.Post(ctx, c.client.GetConfig().SummarizePath, req, &response); err != nil {
		return "", errors.Wrap(err, "failed to summarize text")
	}

	return response.SummaryText, nil
}

var _ summary.Summarizer = (*SummarizeClient)(nil)
