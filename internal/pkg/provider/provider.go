package provider

import (
	"context"
	"errors"
	"fmt"
)

// 视频生成服务商名称
const (
	NameSora = "sora2"
	NameVeo  = "veo3"
)

// 服务商侧任务状态
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	// ErrUnavailable 临时故障（限流、5xx），可以重试
	ErrUnavailable = errors.New("生成服务暂时不可用")
	// ErrRejected 请求被拒绝（内容审核、参数错误），重试无意义
	ErrRejected = errors.New("生成请求被拒绝")
	// ErrUnknownProvider 未注册的服务商
	ErrUnknownProvider = errors.New("未知的生成服务商")
)

// CreateTaskRequest 提交生成任务的参数
type CreateTaskRequest struct {
	Prompt      string
	Duration    int
	AspectRatio string
	WithAudio   bool
	CallbackURL string
}

// Task 服务商侧的任务快照
type Task struct {
	ID           string
	Status       string
	ResultURL    string
	ErrorMessage string
}

// Provider 视频生成服务商。实现方负责自己的重试与超时
type Provider interface {
	Name() string
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*Task, error)
	FetchTask(ctx context.Context, providerTaskID string) (*Task, error)
}

// Registry 按名称索引的服务商集合
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get 按名称取服务商
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
