package services

import (
	"context"
	"strconv"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/cache"
	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/sirupsen/logrus"
)

// summaryCachePrefix 摘要缓存键前缀
const summaryCachePrefix = "summary"

// CachedSummarizer 带缓存的摘要模型
// 相同的段落和解码参数直接返回缓存结果
type CachedSummarizer struct {
	next   summary.Summarizer
	cache  cache.Cache
	model  string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedSummarizer 创建带缓存的摘要模型
// cache为nil时直接调用下游模型
func NewCachedSummarizer(next summary.Summarizer, c cache.Cache, model string, ttl time.Duration, logger *logrus.Logger) *CachedSummarizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedSummarizer{
		next:   next,
		cache:  c,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Summarize 生成摘要，优先读取缓存
func (s *CachedSummarizer) Summarize(ctx context.Context, text string, opts summary.Options) (string, error) {
	if s.cache == nil {
		return s.next.Summarize(ctx, text, opts)
	}

	key := cache.HashKey(summaryCachePrefix,
		s.model,
		strconv.Itoa(opts.MaxLength),
		strconv.Itoa(opts.MinLength),
		strconv.FormatBool(opts.DoSample),
		text,
	)

	if cached, found, err := s.cache.Get(key); err != nil {
		s.logger.WithError(err).Warn("Failed to read summary cache")
	} else if found {
		s.logger.WithField("key", key).Debug("Summary cache hit")
		return cached, nil
	}

	result, err := s.next.Summarize(ctx, text, opts)
	if err != nil {
		return "", err
	}

	// 采样解码的结果不固定，不缓存
	if !opts.DoSample {
		if err := s.cache.Set(key, result, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Failed to write summary cache")
		}
	}
	return result, nil
}
