package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelTaskProgress = "task_progress"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	TaskID    int64  `json:"task_id"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Step      string `json:"step"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// 进度阶段常量
const (
	StepQueued     = "queued"
	StepDispatched = "dispatched"
	StepGenerating = "generating"
	StepDone       = "done"
	StepFailed     = "failed"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepQueued:     10,
	StepDispatched: 30,
	StepGenerating: 60,
	StepDone:       100,
	StepFailed:     100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepQueued:     "任务已排队",
	StepDispatched: "已提交到生成服务",
	StepGenerating: "视频生成中",
	StepDone:       "生成完成",
	StepFailed:     "生成失败，费用已退回",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "task_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelTaskProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelTaskProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
