package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/nerf-processor/api"
	"github.com/fyerfyer/nerf-processor/api/handler"
	"github.com/fyerfyer/nerf-processor/api/middleware"
	appconfig "github.com/fyerfyer/nerf-processor/config"
	"github.com/fyerfyer/nerf-processor/internal/artifact"
	"github.com/fyerfyer/nerf-processor/internal/cache"
	"github.com/fyerfyer/nerf-processor/internal/database"
	"github.com/fyerfyer/nerf-processor/internal/pyprovider"
	"github.com/fyerfyer/nerf-processor/internal/repository"
	"github.com/fyerfyer/nerf-processor/internal/services"
	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/fyerfyer/nerf-processor/pkg/storage"
	"github.com/fyerfyer/nerf-processor/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 命令行选项，显式指定时覆盖配置文件
type options struct {
	ConfigFile string // 配置文件路径
	EnvFile    string // .env文件路径
	Port       int    // 服务端口
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
	Queue      bool   // 是否启用任务队列
	WorkerOnly bool   // 只运行任务工作者，不启动HTTP服务
}

func main() {
	opts := parseFlags()

	// .env中的变量作为配置的环境变量覆盖来源
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load env file")
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts)

	gin.SetMode(cfg.Server.Mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting NER document processor...")

	if err := database.Setup(&database.Config{
		Type:         cfg.Database.Type,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	artifacts, err := setupArtifacts(cfg, fileStorage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize artifact store: %v", err)
	}

	cacheService, err := setupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	recognizer, summarizer, err := setupPythonClients(cfg, cacheService, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize python service clients: %v", err)
	}

	composer := summary.NewComposer(summarizer,
		summary.WithOptions(summary.Options{
			MaxLength: cfg.Summarizer.MaxLength,
			MinLength: cfg.Summarizer.MinLength,
			DoSample:  cfg.Summarizer.DoSample,
		}),
		summary.WithLogger(logger),
	)

	var repo repository.DocumentRepository
	if queue != nil {
		repo = repository.NewDocumentRepositoryWithQueue(database.MustDB(), queue)
	} else {
		repo = repository.NewDocumentRepository()
	}
	statusManager := services.NewDocumentStatusManager(repo, logger)

	documentServiceOptions := []services.DocumentOption{
		services.WithDocumentRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithTimeout(cfg.Processing.Timeout),
		services.WithLogger(logger),
	}
	if queue != nil {
		documentServiceOptions = append(documentServiceOptions, services.WithTaskQueue(queue))
		logger.Info("Document processing will use async task queue")
	}

	documentService := services.NewDocumentService(
		fileStorage,
		artifacts,
		recognizer,
		composer,
		documentServiceOptions...,
	)
	if err := documentService.Init(); err != nil {
		logger.Fatalf("Failed to initialize document service: %v", err)
	}

	var worker taskqueue.Worker
	if queue != nil && (cfg.Queue.Worker || opts.WorkerOnly) {
		worker, err = startWorker(queue, cfg.Queue, documentService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if opts.WorkerOnly {
		logger.Info("Running in worker-only mode")
		<-quit
		logger.Info("Worker exited")
		return
	}

	router := api.SetupRouter(
		handler.NewDocumentHandler(documentService),
		handler.NewTaskHandler(documentService),
		documentService.AsyncEnabled(),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Path to .env file")
	flag.IntVar(&opts.Port, "port", 8080, "Server port")
	flag.StringVar(&opts.Mode, "mode", "release", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.BoolVar(&opts.Queue, "queue", false, "Enable task queue")
	flag.BoolVar(&opts.WorkerOnly, "worker", false, "Run only the task worker")

	flag.Parse()
	return opts
}

// applyFlags 用命令行上明确设置的参数覆盖配置
func applyFlags(cfg *appconfig.Config, opts options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = opts.Port
		case "mode":
			cfg.Server.Mode = opts.Mode
		case "log-level":
			cfg.Log.Level = opts.LogLevel
		case "queue":
			cfg.Queue.Enable = opts.Queue
		}
	})
	if opts.WorkerOnly {
		cfg.Queue.Enable = true
	}
}

// setupLogger 设置日志系统
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type: cfg.Type,
		Local: storage.LocalConfig{
			Path: cfg.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupArtifacts 产物与上传文件使用同一存储后端
func setupArtifacts(cfg *appconfig.Config, fileStorage storage.Storage, logger *logrus.Logger) (*artifact.Store, error) {
	objects, err := storage.ObjectsFor(fileStorage, cfg.Artifacts.Root)
	if err != nil {
		return nil, err
	}
	if _, local := objects.(*storage.LocalObjects); local && cfg.Queue.Enable && !cfg.Queue.Worker {
		logger.WithField("root", cfg.Artifacts.Root).
			Warn("Local storage with a separate worker process needs a filesystem shared by both processes")
	}

	return artifact.NewStore(objects, artifact.Config{
		TextDir:    cfg.Artifacts.TextDir,
		EntityDir:  cfg.Artifacts.EntityDir,
		SummaryDir: cfg.Artifacts.SummaryDir,
	})
}

// setupCache 设置摘要结果缓存，未启用时返回nil
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	if !cfg.Enable {
		return nil, nil
	}

	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	if cfg.KeyPrefix != "" {
		cacheConfig.KeyPrefix = cfg.KeyPrefix
	}
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.Concurrency,
		RetryLimit:    cfg.RetryLimit,
		RetryDelay:    time.Duration(cfg.RetryDelay) * time.Second,
		QueueName:     cfg.QueueName,
		Queues:        map[string]int{cfg.QueueName: 1},
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"retry_limit": cfg.RetryLimit,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewQueue(cfg.Type, queueConfig)
	if err != nil {
		return nil, err
	}
	if rq, ok := queue.(*taskqueue.RedisQueue); ok {
		rq.WithLogger(logger)
	}
	return queue, nil
}

// setupPythonClients 创建NER与摘要服务客户端
func setupPythonClients(cfg *appconfig.Config, c cache.Cache, logger *logrus.Logger) (services.EntityRecognizer, summary.Summarizer, error) {
	pyConfig := pyprovider.DefaultConfig().
		WithBaseURL(cfg.PythonService.BaseURL).
		WithTimeout(cfg.PythonService.Timeout).
		WithRetry(cfg.PythonService.MaxRetries, cfg.PythonService.RetryDelay).
		WithTLS(cfg.PythonService.EnableTLS)

	client, err := pyprovider.NewClient(pyConfig)
	if err != nil {
		return nil, nil, err
	}
	if hc, ok := client.(*pyprovider.HTTPClient); ok {
		hc.WithLogger(logger)
	}

	logger.WithFields(logrus.Fields{
		"base_url":         cfg.PythonService.BaseURL,
		"ner_model":        cfg.NER.Model,
		"summarizer_model": cfg.Summarizer.Model,
	}).Info("Python service clients configured")

	recognizer := pyprovider.NewNERClient(client, cfg.NER.Model)
	summarizer := services.NewCachedSummarizer(
		pyprovider.NewSummarizeClient(client, cfg.Summarizer.Model),
		c,
		cfg.Summarizer.Model,
		time.Duration(cfg.Cache.TTL)*time.Second,
		logger,
	)
	return recognizer, summarizer, nil
}

// startWorker 启动文档处理任务工作者
func startWorker(queue taskqueue.Queue, cfg appconfig.QueueConfig, svc *services.DocumentService, logger *logrus.Logger) (taskqueue.Worker, error) {
	rq, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("unsupported queue implementation for worker: %T", queue)
	}

	worker := taskqueue.NewRedisWorker(rq, nil)
	taskHandler := services.NewProcessTaskHandler(svc, logger)
	for _, taskType := range taskHandler.GetTaskTypes() {
		worker.RegisterHandler(taskType, taskHandler)
	}

	if err := worker.Start(); err != nil {
		return nil, err
	}
	logger.WithField("concurrency", cfg.Concurrency).Info("Task worker started")
	return worker, nil
}
