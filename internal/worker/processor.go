package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/pkg/notifier"
	"github.com/kudoai/billing_go_server/internal/pkg/provider"
	"github.com/kudoai/billing_go_server/internal/pkg/pubsub"
	"github.com/kudoai/billing_go_server/internal/pkg/queue"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
)

// Processor 任务分发器：从队列取任务，提交给生成服务商。
// 限流和 5xx 按指数退避重试，重试耗尽按失败处理并退款
type Processor struct {
	taskRepo          *repository.TaskRepository
	generationService *service.GenerationService
	providers         *provider.Registry
	publisher         *pubsub.Publisher
	notify            notifier.Notifier
	cfg               *config.Config
}

// NewProcessor 创建任务分发器
func NewProcessor(
	taskRepo *repository.TaskRepository,
	generationService *service.GenerationService,
	providers *provider.Registry,
	publisher *pubsub.Publisher,
	notify notifier.Notifier,
	cfg *config.Config,
) *Processor {
	return &Processor{
		taskRepo:          taskRepo,
		generationService: generationService,
		providers:         providers,
		publisher:         publisher,
		notify:            notify,
		cfg:               cfg,
	}
}

// Process 处理一条队列消息
func (p *Processor) Process(ctx context.Context, msg *queue.TaskMessage) error {
	task, err := p.taskRepo.GetByID(msg.TaskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	// 重启后消息可能重复投递，只处理还没分发的任务
	if task.Status != model.TaskStatusRequested {
		log.Printf("任务 %d 状态为 %s，跳过分发", task.ID, task.Status)
		return nil
	}

	return p.Dispatch(ctx, task)
}

// Dispatch 把任务提交给生成服务商。
// 先在数据库里把任务原子认领成 dispatching，没抢到就说明队列消息和
// 恢复扫描撞在了一起，直接退出，保证同一个任务只提交一次
func (p *Processor) Dispatch(ctx context.Context, task *model.GenerationTask) error {
	claimed, err := p.taskRepo.ClaimForDispatch(task.ID)
	if err != nil {
		return fmt.Errorf("failed to claim task: %w", err)
	}
	if !claimed {
		log.Printf("任务 %d 已被其他流程认领，跳过分发", task.ID)
		return nil
	}
	task.Status = model.TaskStatusDispatching

	prov, err := p.providers.Get(task.Provider)
	if err != nil {
		return p.failTask(ctx, task, err.Error())
	}

	p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:   task.UserID,
		TaskID:   task.ID,
		Provider: task.Provider,
		Status:   task.Status,
		Step:     pubsub.StepDispatched,
	})

	req := &provider.CreateTaskRequest{
		Prompt:      task.Prompt,
		Duration:    task.Duration,
		AspectRatio: task.AspectRatio,
		WithAudio:   task.WithAudio,
		CallbackURL: p.callbackURL(task.Provider),
	}

	maxRetries := p.maxRetries(task.Provider)
	var result *provider.Task
	for attempt := 0; ; attempt++ {
		result, err = prov.CreateTask(ctx, req)
		if err == nil {
			break
		}
		if !provider.IsRetryable(err) || attempt >= maxRetries {
			log.Printf("任务 %d 提交失败 (尝试 %d 次): %v", task.ID, attempt+1, err)
			return p.failTask(ctx, task, err.Error())
		}

		backoff := time.Second << uint(attempt)
		log.Printf("任务 %d 提交受限，%v 后重试: %v", task.ID, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	// 个别服务商在同步响应里直接带结果
	if result.Status == provider.StatusSucceeded {
		now := time.Now()
		if err := p.taskRepo.MarkQueued(task.ID, result.ID, now); err != nil {
			return err
		}
		task.ProviderTaskID = &result.ID
		if err := p.generationService.CompleteTask(ctx, task, result.ResultURL); err != nil {
			return err
		}
		p.notifySuccess(ctx, task, result.ResultURL)
		return nil
	}

	now := time.Now()
	if err := p.taskRepo.MarkQueued(task.ID, result.ID, now); err != nil {
		return fmt.Errorf("failed to mark task queued: %w", err)
	}

	p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:   task.UserID,
		TaskID:   task.ID,
		Provider: task.Provider,
		Status:   model.TaskStatusQueued,
		Step:     pubsub.StepGenerating,
	})

	log.Printf("任务 %d 已提交 provider=%s provider_task=%s", task.ID, task.Provider, result.ID)
	return nil
}

func (p *Processor) failTask(ctx context.Context, task *model.GenerationTask, errMsg string) error {
	if err := p.generationService.FailTask(ctx, task, errMsg); err != nil {
		return err
	}
	p.notifyFailure(ctx, task)
	return nil
}

func (p *Processor) notifySuccess(ctx context.Context, task *model.GenerationTask, resultURL string) {
	if err := p.notify.SendVideo(ctx, task.UserID, resultURL, "Ваше видео готово 🎬"); err != nil {
		log.Printf("任务 %d 发送视频失败: %v", task.ID, err)
	}
}

func (p *Processor) notifyFailure(ctx context.Context, task *model.GenerationTask) {
	text := fmt.Sprintf("Не удалось сгенерировать видео. %d монет возвращены на баланс.", task.CostReserved)
	if err := p.notify.SendMessage(ctx, task.UserID, text); err != nil {
		log.Printf("任务 %d 发送失败通知失败: %v", task.ID, err)
	}
}

func (p *Processor) callbackURL(providerName string) string {
	switch providerName {
	case provider.NameSora:
		return p.cfg.Providers.Sora.CallbackURL
	case provider.NameVeo:
		return p.cfg.Providers.Veo.CallbackURL
	}
	return ""
}

func (p *Processor) maxRetries(providerName string) int {
	retries := 0
	switch providerName {
	case provider.NameSora:
		retries = p.cfg.Providers.Sora.MaxRetries
	case provider.NameVeo:
		retries = p.cfg.Providers.Veo.MaxRetries
	}
	if retries <= 0 {
		retries = 3
	}
	return retries
}
