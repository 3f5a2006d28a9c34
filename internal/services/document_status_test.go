package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/nerf-processor/internal/database"
	"github.com/fyerfyer/nerf-processor/internal/models"
	"github.com/fyerfyer/nerf-processor/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建测试数据库环境，并替换全局数据库连接
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := filepath.Join(t.TempDir(), "test_documents.db")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, db.AutoMigrate(&models.Document{}), "Failed to run migrations")

	originalDB := database.DB
	database.DB = db

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		database.DB = originalDB
	})

	return db
}

func newTestStatusManager(t *testing.T) (*DocumentStatusManager, repository.DocumentRepository) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepositoryWithDB(db)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewDocumentStatusManager(repo, logger), repo
}

// TestDocumentStatusManager_BasicFlow 测试文档状态管理基本流程
func TestDocumentStatusManager_BasicFlow(t *testing.T) {
	manager, repo := newTestStatusManager(t)
	ctx := context.Background()

	doc, err := manager.MarkAsUploaded(ctx, "doc-1", "Resume.PDF", "uploads/doc-1.pdf", 2048)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusUploaded, doc.Status)
	assert.Equal(t, "pdf", doc.FileType)

	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-1"))
	status, err := manager.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, status)

	require.NoError(t, manager.SetStage(ctx, "doc-1", models.StageRecognizing))
	require.NoError(t, manager.RecordArtifact(ctx, "doc-1", models.ArtifactText))
	require.NoError(t, manager.AttachTask(ctx, "doc-1", "task-1"))

	require.NoError(t, manager.MarkAsCompleted(ctx, "doc-1", 7))

	doc, err = repo.GetByID("doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, models.StageCompleted, doc.CurrentStage)
	assert.Equal(t, 7, doc.EntityCount)
	assert.Equal(t, "task-1", doc.CurrentTaskID)
	assert.True(t, doc.TextProcessed)
	assert.False(t, doc.SummaryProcessed)
	assert.NotNil(t, doc.ProcessedAt)
	assert.Equal(t, 0, doc.RetryCount)
}

// TestDocumentStatusManager_FailureAndRetry 测试失败后重新处理
func TestDocumentStatusManager_FailureAndRetry(t *testing.T) {
	manager, repo := newTestStatusManager(t)
	ctx := context.Background()

	_, err := manager.MarkAsUploaded(ctx, "doc-2", "cv.pdf", "uploads/doc-2.pdf", 10)
	require.NoError(t, err)
	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-2"))
	require.NoError(t, manager.MarkAsFailed(ctx, "doc-2", "ner service unavailable"))

	doc, err := repo.GetByID("doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.Equal(t, "ner service unavailable", doc.Error)

	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-2"))

	doc, err = repo.GetByID("doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, doc.Status)
	assert.Empty(t, doc.Error)
	assert.Nil(t, doc.ProcessedAt)
	assert.Equal(t, 1, doc.RetryCount)
}

// TestDocumentStatusManager_InvalidTransitions 测试非法状态转换
func TestDocumentStatusManager_InvalidTransitions(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	_, err := manager.MarkAsUploaded(ctx, "doc-3", "cv.txt", "uploads/doc-3.txt", 10)
	require.NoError(t, err)

	// 未开始处理不能直接完成
	err = manager.MarkAsCompleted(ctx, "doc-3", 0)
	assert.ErrorIs(t, err, models.ErrInvalidDocumentStatus)

	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-3"))
	err = manager.MarkAsProcessing(ctx, "doc-3")
	assert.ErrorIs(t, err, models.ErrInvalidDocumentStatus)

	tests := []struct {
		from  models.DocumentStatus
		to    models.DocumentStatus
		valid bool
	}{
		{models.DocStatusUploaded, models.DocStatusProcessing, true},
		{models.DocStatusUploaded, models.DocStatusCompleted, false},
		{models.DocStatusProcessing, models.DocStatusCompleted, true},
		{models.DocStatusProcessing, models.DocStatusUploaded, false},
		{models.DocStatusCompleted, models.DocStatusProcessing, true},
		{models.DocStatusCompleted, models.DocStatusFailed, false},
		{models.DocStatusFailed, models.DocStatusProcessing, true},
		{models.DocStatusFailed, models.DocStatusCompleted, false},
	}

	for _, tt := range tests {
		err := manager.ValidateStateTransition(tt.from, tt.to)
		if tt.valid {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidDocumentStatus, "%s -> %s", tt.from, tt.to)
		}
	}
}

// TestDocumentStatusManager_NotFound 测试不存在的文档
func TestDocumentStatusManager_NotFound(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	_, err := manager.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	err = manager.MarkAsProcessing(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	err = manager.MarkAsFailed(ctx, "missing", "boom")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	err = manager.DeleteDocument(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

// TestDocumentStatusManager_List 测试按状态和产物筛选
func TestDocumentStatusManager_List(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := manager.MarkAsUploaded(ctx, id, id+".pdf", "uploads/"+id+".pdf", 1)
		require.NoError(t, err)
	}
	require.NoError(t, manager.MarkAsProcessing(ctx, "a"))
	require.NoError(t, manager.RecordArtifact(ctx, "a", models.ArtifactSummary))

	docs, total, err := manager.ListDocuments(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, docs, 3)

	docs, total, err = manager.ListDocuments(ctx, 0, 10, map[string]interface{}{
		"status": models.DocStatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	docs, _, err = manager.ListDocuments(ctx, 0, 10, map[string]interface{}{
		"artifact": models.ArtifactSummary,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}
