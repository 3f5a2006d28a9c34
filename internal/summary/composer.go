package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/sirupsen/logrus"
)

// 默认解码参数
const (
	DefaultMaxLength = 150
	DefaultMinLength = 40
)

// joinSep 类别内的值连接符
const joinSep = ", "

// Options 摘要模型的解码参数
type Options struct {
	MaxLength int  `json:"max_length"` // 最大输出token数
	MinLength int  `json:"min_length"` // 最小输出token数
	DoSample  bool `json:"do_sample"`  // 是否采样，false为确定性解码
}

// DefaultOptions 返回默认解码参数
func DefaultOptions() Options {
	return Options{
		MaxLength: DefaultMaxLength,
		MinLength: DefaultMinLength,
		DoSample:  false,
	}
}

// Summarizer 抽象式摘要模型接口
type Summarizer interface {
	// Summarize 对输入文本生成摘要
	Summarize(ctx context.Context, text string, opts Options) (string, error)
}

// Composer 摘要组装器
// 将清洗后的实体组装为模板段落，再交给摘要模型压缩
type Composer struct {
	summarizer Summarizer
	options    Options
	logger     *logrus.Logger
}

// ComposerOption 组装器配置选项
type ComposerOption func(*Composer)

// WithOptions 设置解码参数
func WithOptions(opts Options) ComposerOption {
	return func(c *Composer) {
		c.options = opts
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ComposerOption {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewComposer 创建摘要组装器
func NewComposer(summarizer Summarizer, opts ...ComposerOption) *Composer {
	c := &Composer{
		summarizer: summarizer,
		options:    DefaultOptions(),
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose 生成文档摘要
// documentText 目前未参与组装
func (c *Composer) Compose(ctx context.Context, entities []ner.Entity, documentText string) (string, error) {
	profile := BuildProfile(entities)
	narrative := Narrative(profile)

	// 没有任何类别时不调用摘要模型
	if narrative == "" {
		c.logger.Debug("Empty narrative, skipping summarization")
		return "", nil
	}

	c.logger.WithFields(logrus.Fields{
		"entities":   len(entities),
		"narrative":  len(narrative),
		"max_length": c.options.MaxLength,
		"min_length": c.options.MinLength,
	}).Debug("Summarizing narrative")

	summary, err := c.summarizer.Summarize(ctx, narrative, c.options)
	if err != nil {
		return "", fmt.Errorf("failed to summarize narrative: %w", err)
	}
	return summary, nil
}

// Narrative 根据画像组装模板段落
// 每个句子只在对应类别非空时出现，顺序固定
func Narrative(p *Profile) string {
	return strings.Join(Sentences(p), " ")
}

// Sentences 返回模板句子列表
func Sentences(p *Profile) []string {
	var sentences []string

	// 多个姓名时只使用第一个
	if p.Has(CategoryName) {
		sentences = append(sentences, fmt.Sprintf("%s is a professional with experience in roles such as %s.",
			p.Values(CategoryName)[0], join(p, CategoryJobTitles)))
	}

	if p.Has(CategoryOrgs) {
		sentences = append(sentences, fmt.Sprintf("They have worked at organizations including %s in locations such as %s.",
			join(p, CategoryOrgs), join(p, CategoryLocations)))
	}

	if p.Has(CategorySkills) {
		sentences = append(sentences, fmt.Sprintf("Their key skills include %s.", join(p, CategorySkills)))
	}

	if p.Has(CategoryDegrees) {
		sentences = append(sentences, fmt.Sprintf("They hold degrees such as %s.", join(p, CategoryDegrees)))
	}

	if p.Has(CategoryAchievements) {
		sentences = append(sentences, fmt.Sprintf("Some notable achievements are %s.", join(p, CategoryAchievements)))
	}

	if p.Has(CategoryEmails) {
		sentences = append(sentences, fmt.Sprintf("You can contact them at %s.", join(p, CategoryEmails)))
	}

	if p.Has(CategoryPhones) {
		sentences = append(sentences, fmt.Sprintf("Alternatively, reach them by phone at %s.", join(p, CategoryPhones)))
	}

	if p.Has(CategoryURLs) {
		sentences = append(sentences, fmt.Sprintf("More information can be found at their website: %s.", join(p, CategoryURLs)))
	}

	return sentences
}

func join(p *Profile, c Category) string {
	return strings.Join(p.Values(c), joinSep)
}
