package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/artifact"
	"github.com/fyerfyer/nerf-processor/internal/document"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/fyerfyer/nerf-processor/internal/repository"
	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/fyerfyer/nerf-processor/pkg/storage"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// ErrAsyncDisabled 未配置任务队列
var ErrAsyncDisabled = errors.New("async processing not enabled")

// EntityRecognizer 命名实体识别接口
type EntityRecognizer interface {
	// Recognize 返回分组后的原始实体，保持识别顺序
	Recognize(ctx context.Context, text string) ([]ner.RawEntity, error)
}

// DocumentService 文档服务
// 负责协调文本提取、实体识别与清洗、摘要生成以及产物存储
type DocumentService struct {
	storage       storage.Storage               // 上传文件存储
	artifacts     *artifact.Store               // 处理产物存储
	recognizer    EntityRecognizer              // 实体识别服务
	composer      *summary.Composer             // 摘要生成
	repo          repository.DocumentRepository // 文档元数据存储
	statusManager *DocumentStatusManager        // 文档状态管理器
	taskQueue     taskqueue.Queue               // 任务队列
	asyncEnabled  bool                          // 是否启用异步处理
	timeout       time.Duration                 // 处理超时时间
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档服务
func NewDocumentService(
	storage storage.Storage,
	artifacts *artifact.Store,
	recognizer EntityRecognizer,
	composer *summary.Composer,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:    storage,
		artifacts:  artifacts,
		recognizer: recognizer,
		composer:   composer,
		timeout:    time.Minute * 5,
		logger:     logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository 设置文档仓储
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// Init 初始化文档服务
// 确保必要的依赖都已设置
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	if s.storage == nil || s.artifacts == nil {
		return errors.New("document service requires storage and artifact store")
	}

	return nil
}

// AsyncEnabled 是否通过任务队列处理文档
func (s *DocumentService) AsyncEnabled() bool {
	return s.asyncEnabled && s.taskQueue != nil
}

// Upload 保存上传的文件并创建文档记录
func (s *DocumentService) Upload(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	filename = filepath.Base(filename)
	if !document.IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedType, filename)
	}

	info, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	doc, err := s.statusManager.MarkAsUploaded(ctx, info.ID, filename, info.Path, info.Size)
	if err != nil {
		if delErr := s.storage.Delete(info.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("doc_id", info.ID).Warn("Failed to remove orphaned upload")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": filename,
		"size":     info.Size,
	}).Info("Document uploaded")

	return doc, nil
}

// ProcessDocument 处理文档：提取文本、识别并清洗实体、生成摘要
// 启用异步处理时将任务加入队列并返回任务ID，否则同步执行
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	if docID == "" {
		return "", errors.New("document id cannot be empty")
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		return "", err
	}

	if s.AsyncEnabled() {
		return s.processDocumentAsync(ctx, doc)
	}

	_, err = s.runPipeline(ctx, doc)
	return "", err
}

// processDocumentAsync 将文档处理任务加入队列
func (s *DocumentService) processDocumentAsync(ctx context.Context, doc *models.Document) (string, error) {
	payload := taskqueue.ProcessDocumentPayload{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskProcessDocument, doc.ID, payload)
	if err != nil {
		s.failDocument(ctx, doc.ID, fmt.Sprintf("failed to create processing task: %v", err))
		return "", fmt.Errorf("failed to create processing task: %w", err)
	}

	if err := s.statusManager.AttachTask(ctx, doc.ID, taskID); err != nil {
		s.logger.WithError(err).WithField("doc_id", doc.ID).Warn("Failed to attach task to document")
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":  doc.ID,
		"task_id": taskID,
	}).Info("Document processing task created successfully")

	return taskID, nil
}

// ProcessQueued 执行队列中的文档处理任务
// 重试时文档可能已被标记为失败，需要重新进入处理中状态
func (s *DocumentService) ProcessQueued(ctx context.Context, docID string) (*taskqueue.ProcessDocumentResult, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	if doc.Status != models.DocStatusProcessing {
		if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
			return nil, err
		}
	}

	return s.runPipeline(ctx, doc)
}

// runPipeline 依次执行各处理阶段，任一阶段失败则标记文档失败
func (s *DocumentService) runPipeline(ctx context.Context, doc *models.Document) (*taskqueue.ProcessDocumentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
	})
	log.Info("Starting document processing")

	result := &taskqueue.ProcessDocumentResult{DocumentID: doc.ID}
	key := artifactKey(doc)

	fail := func(stage models.ProcessStage, err error) (*taskqueue.ProcessDocumentResult, error) {
		err = fmt.Errorf("%s failed: %w", stage, err)
		result.Error = err.Error()
		s.failDocument(ctx, doc.ID, err.Error())
		return result, err
	}

	// 1. 文本提取
	s.enterStage(ctx, doc.ID, models.StageExtracting)
	text, err := s.extractText(doc)
	if err != nil {
		return fail(models.StageExtracting, err)
	}
	if err := s.artifacts.WriteText(key, text); err != nil {
		return fail(models.StageExtracting, err)
	}
	s.recordArtifact(ctx, doc.ID, models.ArtifactText)
	result.TextLength = len(text)

	// 2. 实体识别与清洗
	s.enterStage(ctx, doc.ID, models.StageRecognizing)
	raw, err := s.recognizer.Recognize(ctx, text)
	if err != nil {
		return fail(models.StageRecognizing, err)
	}
	entities := ner.Clean(raw)
	if err := s.artifacts.WriteEntities(key, entities); err != nil {
		return fail(models.StageRecognizing, err)
	}
	s.recordArtifact(ctx, doc.ID, models.ArtifactEntities)
	result.EntityCount = len(entities)

	log.WithFields(logrus.Fields{
		"raw_entities":   len(raw),
		"clean_entities": len(entities),
	}).Debug("Entities cleaned")

	// 3. 摘要生成
	s.enterStage(ctx, doc.ID, models.StageSummarizing)
	summaryText, err := s.composer.Compose(ctx, entities, text)
	if err != nil {
		return fail(models.StageSummarizing, err)
	}
	if err := s.artifacts.WriteSummary(key, summaryText); err != nil {
		return fail(models.StageSummarizing, err)
	}
	s.recordArtifact(ctx, doc.ID, models.ArtifactSummary)
	result.SummaryLength = len(summaryText)

	if err := s.statusManager.MarkAsCompleted(ctx, doc.ID, len(entities)); err != nil {
		log.WithError(err).Error("Failed to mark document as completed")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"entity_count":   result.EntityCount,
		"summary_length": result.SummaryLength,
	}).Info("Document processing completed successfully")

	return result, nil
}

// extractText 从存储中读取上传文件并提取文本
func (s *DocumentService) extractText(doc *models.Document) (string, error) {
	parser, err := document.ParserFactory(doc.FileName)
	if err != nil {
		return "", err
	}

	reader, err := s.storage.Get(doc.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	return parser.ParseReader(reader, doc.FileName)
}

func (s *DocumentService) enterStage(ctx context.Context, docID string, stage models.ProcessStage) {
	if err := s.statusManager.SetStage(ctx, docID, stage); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to update document stage")
	}
}

func (s *DocumentService) recordArtifact(ctx context.Context, docID string, a models.Artifact) {
	if err := s.statusManager.RecordArtifact(ctx, docID, a); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to record artifact")
	}
}

// GetDocument 获取文档信息
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s.statusManager.GetDocument(ctx, docID)
}

// ListDocuments 获取文档列表，包含各产物是否已生成
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}
	return s.statusManager.ListDocuments(ctx, offset, limit, filters)
}

// DeleteDocument 删除文档：上传文件、处理产物、数据库记录和相关任务
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(docID); err != nil {
		// 文件可能已被删除
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to delete file from storage")
	}

	if err := s.artifacts.Remove(artifactKey(doc)); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to delete document artifacts")
	}

	if err := s.statusManager.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	if s.taskQueue != nil {
		tasks, err := s.taskQueue.GetTasksByDocument(ctx, docID)
		if err == nil {
			for _, task := range tasks {
				if err := s.taskQueue.DeleteTask(ctx, task.ID); err != nil {
					s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to delete document task")
				}
			}
		}
	}

	s.logger.WithField("doc_id", docID).Info("Document deleted successfully")
	return nil
}

// OpenUpload 打开上传的原始文件
func (s *DocumentService) OpenUpload(ctx context.Context, docID string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.storage.Get(docID)
	if err != nil {
		return nil, nil, err
	}
	return reader, doc, nil
}

// OpenArtifact 打开文档的处理产物
func (s *DocumentService) OpenArtifact(ctx context.Context, docID string, kind artifact.Kind) (io.ReadCloser, string, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, "", err
	}

	name, err := artifact.ArtifactName(kind, doc.FileName)
	if err != nil {
		return nil, "", err
	}

	reader, err := s.artifacts.Open(kind, artifactKey(doc))
	if err != nil {
		return nil, "", err
	}
	return reader, name, nil
}

// GetTask 获取异步处理任务
func (s *DocumentService) GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	if s.taskQueue == nil {
		return nil, ErrAsyncDisabled
	}
	return s.taskQueue.GetTask(ctx, taskID)
}

// WaitForDocumentProcessing 等待异步处理结束，最多等待timeout
// 超时不算错误，返回的文档仍处于processing状态
func (s *DocumentService) WaitForDocumentProcessing(ctx context.Context, docID string, timeout time.Duration) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	if s.AsyncEnabled() && doc.Status == models.DocStatusProcessing && doc.CurrentTaskID != "" {
		_, err := s.taskQueue.WaitForTask(ctx, doc.CurrentTaskID, timeout)
		if err != nil && !errors.Is(err, taskqueue.ErrTaskTimeout) {
			return nil, fmt.Errorf("failed to wait for document processing: %w", err)
		}
		return s.GetDocument(ctx, docID)
	}

	return doc, nil
}

// DocumentProfile 文档的分类实体和摘要
type DocumentProfile struct {
	DocumentID string
	Profile    map[string][]string
	Summary    string
}

// GetProfile 从实体产物重建分类画像，摘要尚未生成时为空
func (s *DocumentService) GetProfile(ctx context.Context, docID string) (*DocumentProfile, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	key := artifactKey(doc)
	entities, err := s.artifacts.ReadEntities(key)
	if err != nil {
		return nil, err
	}

	var summaryText string
	hasSummary, err := s.artifacts.Exists(artifact.KindSummary, key)
	if err != nil {
		return nil, err
	}
	if hasSummary {
		if summaryText, err = s.artifacts.ReadSummary(key); err != nil {
			return nil, err
		}
	}

	return &DocumentProfile{
		DocumentID: doc.ID,
		Profile:    summary.BuildProfile(entities).Map(),
		Summary:    summaryText,
	}, nil
}

// failDocument 将文档标记为失败状态
func (s *DocumentService) failDocument(ctx context.Context, docID string, errorMsg string) {
	// 超时后仍需记录失败状态
	ctx = context.WithoutCancel(ctx)
	if err := s.statusManager.MarkAsFailed(ctx, docID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"error":  err,
		}).Error("Failed to mark document as failed")
	}
}

// GetStatusManager 返回文档状态管理器实例
func (s *DocumentService) GetStatusManager() *DocumentStatusManager {
	return s.statusManager
}

// artifactKey 产物文件名基于文档ID和原始文件名，避免同名上传互相覆盖
func artifactKey(doc *models.Document) string {
	return doc.ID + "_" + filepath.Base(doc.FileName)
}
