package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisQueue 基于asynq的任务队列
// asynq负责投递与重试，任务元数据以JSON保存在 task:<id> 中，
// 文档与任务的对应关系保存在集合 document_tasks:<document_id> 中
type RedisQueue struct {
	client      *asynq.Client
	inspector   *asynq.Inspector
	redisClient *redis.Client
	cfg         *Config
	logger      *logrus.Logger
}

// ErrSkipRetry 处理器返回包装此错误的错误时，任务直接失败不再重试
var ErrSkipRetry = asynq.SkipRetry

func taskKey(taskID string) string {
	return "task:" + taskID
}

func documentTasksKey(documentID string) string {
	return "document_tasks:" + documentID
}

// taskStatusChannel 任务状态通知频道
func taskStatusChannel(taskID string) string {
	return "task_status:" + taskID
}

// NewRedisQueue 连接Redis并创建队列
func NewRedisQueue(cfg *Config) (Queue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RedisQueue{
		client:      asynq.NewClient(opt),
		inspector:   asynq.NewInspector(opt),
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// WithLogger 设置日志记录器，需要在创建工作者之前调用
func (q *RedisQueue) WithLogger(logger *logrus.Logger) *RedisQueue {
	if logger != nil {
		q.logger = logger
	}
	return q
}

// Enqueue 保存任务元数据后投递到asynq，两者使用同一个任务ID
func (q *RedisQueue) Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error) {
	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	task := &Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		DocumentID: documentID,
		Status:     StatusPending,
		Payload:    payloadBytes,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: q.cfg.RetryLimit,
	}
	if err := q.saveTask(ctx, task); err != nil {
		return "", err
	}

	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(string(taskType), []byte(task.ID)),
		asynq.TaskID(task.ID),
		asynq.Queue(q.queueName()),
		asynq.MaxRetry(q.cfg.RetryLimit),
	)
	if err != nil {
		// 投递失败时不保留孤立的元数据
		if delErr := q.removeTask(ctx, task); delErr != nil {
			q.logger.WithError(delErr).WithField("task_id", task.ID).Warn("Failed to clean up task metadata")
		}
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   taskType,
		"document_id": documentID,
	}).Info("Task enqueued successfully")

	return task.ID, nil
}

// GetTask 获取任务信息
func (q *RedisQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := q.redisClient.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task from redis: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
	}
	return &task, nil
}

// GetTasksByDocument 获取文档的全部任务
func (q *RedisQueue) GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error) {
	taskIDs, err := q.redisClient.SMembers(ctx, documentTasksKey(documentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get document tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		task, err := q.GetTask(ctx, taskID)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// WaitForTask 订阅状态通知等待任务结束，每秒轮询一次兜底
func (q *RedisQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil || task.Done() {
		return task, err
	}

	pubsub := q.redisClient.Subscribe(ctx, taskStatusChannel(taskID))
	defer pubsub.Close()
	updates := pubsub.Channel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrTaskTimeout
		case <-updates:
		case <-ticker.C:
		}

		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTaskTimeout
			}
			return nil, err
		}
		if task.Done() {
			return task, nil
		}
	}
}

// DeleteTask 删除任务元数据，并尝试从asynq中移除尚未执行的任务
func (q *RedisQueue) DeleteTask(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := q.removeTask(ctx, task); err != nil {
		return err
	}

	// 正在执行的任务无法删除，处理器会在更新状态时发现任务已不存在
	if err := q.inspector.DeleteTask(q.queueName(), taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		q.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to delete task from asynq queue")
	}
	return nil
}

// UpdateTaskStatus 更新任务状态
func (q *RedisQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errMsg string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now
	task.Error = errMsg

	switch status {
	case StatusProcessing:
		task.Attempts++
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case StatusCompleted, StatusFailed:
		task.CompletedAt = &now
	}

	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		task.Result = resultBytes
	}

	return q.saveTask(ctx, task)
}

// NotifyTaskUpdate 广播任务状态变化
func (q *RedisQueue) NotifyTaskUpdate(ctx context.Context, taskID string) error {
	return q.redisClient.Publish(ctx, taskStatusChannel(taskID), "updated").Err()
}

// Close 关闭全部连接
func (q *RedisQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redisClient.Close())
}

// saveTask 在一个事务中写入任务数据并登记到文档任务集合
func (q *RedisQueue) saveTask(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	ttl := q.taskTTL()
	_, err = q.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKey(task.ID), data, ttl)
		if task.DocumentID != "" {
			pipe.SAdd(ctx, documentTasksKey(task.DocumentID), task.ID)
			pipe.Expire(ctx, documentTasksKey(task.DocumentID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// removeTask 删除任务数据及其在文档任务集合中的登记
func (q *RedisQueue) removeTask(ctx context.Context, task *Task) error {
	_, err := q.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, taskKey(task.ID))
		if task.DocumentID != "" {
			pipe.SRem(ctx, documentTasksKey(task.DocumentID), task.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", task.ID, err)
	}
	return nil
}

func (q *RedisQueue) taskTTL() time.Duration {
	if q.cfg.TaskTTL <= 0 {
		return DefaultConfig().TaskTTL
	}
	return q.cfg.TaskTTL
}

// queueName 返回任务投递的asynq队列
func (q *RedisQueue) queueName() string {
	if q.cfg.QueueName == "" {
		return "default"
	}
	return q.cfg.QueueName
}

func (q *RedisQueue) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.cfg.RedisAddr,
		Password: q.cfg.RedisPassword,
		DB:       q.cfg.RedisDB,
	}
}

func init() {
	RegisterQueueFactory("redis", func(cfg *Config) (Queue, error) {
		return NewRedisQueue(cfg)
	})
}
