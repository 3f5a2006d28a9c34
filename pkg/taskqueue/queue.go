package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Queue 文档处理任务队列
// 任务元数据单独保存，API可以在任务执行期间查询状态
type Queue interface {
	// Enqueue 投递任务，返回任务ID
	Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error)

	// GetTask 获取任务信息
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByDocument 获取文档的全部任务，已过期的任务被忽略
	GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error)

	// WaitForTask 阻塞到任务结束，timeout为0表示只受ctx控制
	WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error)

	// DeleteTask 删除任务元数据，尚未执行的任务同时从队列移除
	DeleteTask(ctx context.Context, taskID string) error

	// UpdateTaskStatus 更新任务状态，result非nil时覆盖任务结果
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// NotifyTaskUpdate 广播任务状态变化，唤醒WaitForTask
	NotifyTaskUpdate(ctx context.Context, taskID string) error

	Close() error
}

// Handler 任务处理器，返回值写入任务结果
type Handler interface {
	ProcessTask(ctx context.Context, task *Task) (interface{}, error)
	GetTaskTypes() []TaskType
}

// Worker 从队列中取出任务并交给Handler执行
type Worker interface {
	RegisterHandler(taskType TaskType, handler Handler)
	Start() error
	Stop()
}

// Config 队列配置
type Config struct {
	RedisAddr     string         // Redis地址
	RedisPassword string         // Redis密码
	RedisDB       int            // Redis数据库
	Concurrency   int            // 工作者并发数
	RetryLimit    int            // 失败任务最大重试次数
	RetryDelay    time.Duration  // 两次重试之间的间隔
	QueueName     string         // 任务投递的队列名称
	Queues        map[string]int // 工作者监听的队列及优先级，为空时只监听QueueName
	TaskTTL       time.Duration  // 任务元数据保留时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		Concurrency: 4,
		RetryLimit:  3,
		RetryDelay:  10 * time.Second,
		QueueName:   "default",
		TaskTTL:     7 * 24 * time.Hour,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("retry limit must not be negative, got %d", c.RetryLimit)
	}
	return nil
}

// Factory 队列工厂函数类型
type Factory func(cfg *Config) (Queue, error)

var queueFactories = make(map[string]Factory)

// RegisterQueueFactory 注册队列工厂函数
func RegisterQueueFactory(name string, factory Factory) {
	queueFactories[name] = factory
}

// NewQueue 根据名称创建队列实例
func NewQueue(name string, cfg *Config) (Queue, error) {
	factory, ok := queueFactories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported queue type: %s", name)
	}
	return factory(cfg)
}

var (
	// ErrTaskNotFound 任务不存在或已过期
	ErrTaskNotFound = TaskError("task not found")
	// ErrTaskTimeout 等待任务超时
	ErrTaskTimeout = TaskError("task timed out")
)

// TaskError 任务错误类型
type TaskError string

func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload 序列化任务载荷或结果
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 反序列化任务载荷或结果，空数据不做处理
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
