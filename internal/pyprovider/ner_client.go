package pyprovider

import (
	"context"
	"strings"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/pkg/errors"
)

// DefaultNERModel 默认NER模型
const DefaultNERModel = "dslim/bert-large-NER"

// NERRequest 表示实体识别请求
type NERRequest struct {
	Text                string `json:"text"`
	Model               string `json:"model,omitempty"`
	AggregationStrategy string `json:"aggregation_strategy,omitempty"`
}

// NERSpan 表示一个分组后的实体片段
type NERSpan struct {
	Word        string  `json:"word"`
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// NERResponse 表示实体识别的响应
type NERResponse struct {
	Entities       []NERSpan `json:"entities"`
	Model          string    `json:"model"`
	ProcessingTime float64   `json:"processing_time"`
}

// NERClient 是Python实体识别服务的客户端
type NERClient struct {
	client Client
	model  string
}

// NewNERClient 创建实体识别客户端
func NewNERClient(client Client, model string) *NERClient {
	if model == "" {
		model = DefaultNERModel
	}
	return &NERClient{
		client: client,
		model:  model,
	}
}

// Model 返回使用的模型名称
func (c *NERClient) Model() string {
	return c.model
}

// Recognize 对文本进行实体识别，返回分组后的实体
func (c *NERClient) Recognize(ctx context.Context, text string) ([]ner.RawEntity, error) {
	if strings.TrimSpace(text) == "" {
		return []ner.RawEntity{}, nil
	}

	req := NERRequest{
		Text:                text,
		Model:               c.model,
		AggregationStrategy: "simple",
	}

	var response NERResponse
	if err := c.client.Post(ctx, c.client.GetConfig().NERPath, req, &response); err != nil {
		return nil, errors.Wrap(err, "failed to recognize entities")
	}

	return ToRawEntities(response.Entities), nil
}

// ToRawEntities 将服务返回的片段一一映射为原始实体
func ToRawEntities(spans []NERSpan) []ner.RawEntity {
	entities := make([]ner.RawEntity, len(spans))
	for i, span := range spans {
		entities[i] = ner.RawEntity{
			Text:  span.Word,
			Label: span.EntityGroup,
		}
	}
	return entities
}
