package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RedisWorker 基于asynq.Server的工作者
// 每次执行前后同步任务元数据的状态，并广播状态变化
type RedisWorker struct {
	server   *asynq.Server
	queue    *RedisQueue
	handlers map[TaskType]Handler
	logger   *logrus.Logger
}

// NewRedisWorker 创建工作者，cfg为nil时沿用队列的配置
func NewRedisWorker(queue *RedisQueue, cfg *Config) Worker {
	if cfg == nil {
		cfg = queue.cfg
	}

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{queue.queueName(): 1}
	}
	retryDelay := cfg.RetryDelay

	server := asynq.NewServer(queue.redisOpt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		RetryDelayFunc: func(int, error, *asynq.Task) time.Duration {
			return retryDelay
		},
		Logger: queue.logger,
	})

	return &RedisWorker{
		server:   server,
		queue:    queue,
		handlers: make(map[TaskType]Handler),
		logger:   queue.logger,
	}
}

// RegisterHandler 注册任务处理器
func (w *RedisWorker) RegisterHandler(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
}

// Start 注册路由并在后台启动服务，不阻塞
func (w *RedisWorker) Start() error {
	mux := asynq.NewServeMux()
	for taskType, handler := range w.handlers {
		mux.HandleFunc(string(taskType), w.wrap(handler))
		w.logger.WithField("task_type", taskType).Info("Registered handler for task type")
	}
	return w.server.Start(mux)
}

// Stop 等待正在执行的任务结束后停止
func (w *RedisWorker) Stop() {
	w.server.Shutdown()
}

// wrap 将Handler包装为asynq处理函数
// 失败且还会重试的任务回到pending，最后一次失败或ErrSkipRetry时标记为failed
func (w *RedisWorker) wrap(h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		taskID := string(t.Payload())
		log := w.logger.WithField("task_id", taskID)

		if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""); err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				log.Warn("Task metadata missing, dropping task")
				return fmt.Errorf("%w: %v", ErrSkipRetry, err)
			}
			log.WithError(err).Error("Failed to update task status to processing")
			return err
		}
		w.notify(ctx, taskID)

		task, err := w.queue.GetTask(ctx, taskID)
		if err != nil {
			log.WithError(err).Error("Failed to get task info")
			return err
		}

		result, err := h.ProcessTask(ctx, task)
		if err != nil {
			status := StatusPending
			if errors.Is(err, ErrSkipRetry) || isLastAttempt(ctx) {
				status = StatusFailed
			}
			if updateErr := w.queue.UpdateTaskStatus(ctx, taskID, status, result, err.Error()); updateErr != nil {
				log.WithError(updateErr).Error("Failed to update task status after failure")
			}
			w.notify(ctx, taskID)
			return err
		}

		if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""); err != nil {
			log.WithError(err).Error("Failed to update task status after completion")
		}
		w.notify(ctx, taskID)
		return nil
	}
}

func (w *RedisWorker) notify(ctx context.Context, taskID string) {
	if err := w.queue.NotifyTaskUpdate(ctx, taskID); err != nil {
		w.logger.WithError(err).WithField("task_id", taskID).Debug("Failed to publish task update")
	}
}

// isLastAttempt 判断当前是否为最后一次尝试
func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
