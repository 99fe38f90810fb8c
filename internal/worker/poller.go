package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/pkg/provider"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
)

const (
	pollBatchSize = 50
	// requested 状态超过这个时间视为队列消息丢失，由恢复扫描补发
	stuckRequestedAfter = 5 * time.Minute
)

// Poller 任务轮询器。三件事：
//  1. 轮询 queued 任务的生成结果（回调可能丢失）
//  2. 超过最大生命周期的任务自动放弃并退款
//  3. 重启后补发卡在 requested 状态的任务
type Poller struct {
	taskRepo          *repository.TaskRepository
	generationService *service.GenerationService
	providers         *provider.Registry
	processor         *Processor
	cfg               *config.Config
}

// NewPoller 创建任务轮询器
func NewPoller(
	taskRepo *repository.TaskRepository,
	generationService *service.GenerationService,
	providers *provider.Registry,
	processor *Processor,
	cfg *config.Config,
) *Poller {
	return &Poller{
		taskRepo:          taskRepo,
		generationService: generationService,
		providers:         providers,
		processor:         processor,
		cfg:               cfg,
	}
}

// Run 周期执行轮询，直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.Queue.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("任务轮询器启动，间隔 %v", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("任务轮询器停止")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick 执行一轮轮询
func (p *Poller) Tick(ctx context.Context) {
	if err := p.pollQueued(ctx); err != nil {
		log.Printf("轮询 queued 任务失败: %v", err)
	}
	if err := p.abandonOverdue(ctx); err != nil {
		log.Printf("清理超时任务失败: %v", err)
	}
	if err := p.recoverStuck(ctx); err != nil {
		log.Printf("补发 requested 任务失败: %v", err)
	}
}

// pollQueued 逐个查询生成中任务的状态
func (p *Poller) pollQueued(ctx context.Context) error {
	tasks, err := p.taskRepo.ListQueued(pollBatchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.ProviderTaskID == nil {
			continue
		}
		prov, err := p.providers.Get(task.Provider)
		if err != nil {
			log.Printf("任务 %d 服务商无效: %v", task.ID, err)
			continue
		}

		remote, err := prov.FetchTask(ctx, *task.ProviderTaskID)
		if err != nil {
			log.Printf("任务 %d 状态查询失败: %v", task.ID, err)
			continue
		}

		switch remote.Status {
		case provider.StatusSucceeded:
			if err := p.generationService.CompleteTask(ctx, task, remote.ResultURL); err != nil {
				log.Printf("任务 %d 完成处理失败: %v", task.ID, err)
				continue
			}
			p.processor.notifySuccess(ctx, task, remote.ResultURL)
		case provider.StatusFailed:
			errMsg := remote.ErrorMessage
			if errMsg == "" {
				errMsg = "生成失败"
			}
			if err := p.generationService.FailTask(ctx, task, errMsg); err != nil {
				log.Printf("任务 %d 失败处理失败: %v", task.ID, err)
				continue
			}
			p.processor.notifyFailure(ctx, task)
		}
	}
	return nil
}

// abandonOverdue 放弃超过最大生命周期的任务并退款
func (p *Poller) abandonOverdue(ctx context.Context) error {
	lifetime := time.Duration(p.cfg.Queue.MaxTaskLifetimeMin) * time.Minute
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	cutoff := time.Now().Add(-lifetime)

	tasks, err := p.taskRepo.ListOverdue(cutoff, pollBatchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		reason := fmt.Sprintf("生成超时 (超过 %v)", lifetime)
		if err := p.generationService.AbandonTask(ctx, task, reason); err != nil {
			log.Printf("任务 %d 放弃处理失败: %v", task.ID, err)
			continue
		}
		p.processor.notifyFailure(ctx, task)
	}
	return nil
}

// recoverStuck 补发落库后没进到服务商的任务（入队失败或 worker 重启丢消息）。
// Dispatch 自己会做原子认领，和队列消费者撞车也只会提交一次
func (p *Poller) recoverStuck(ctx context.Context) error {
	olderThan := time.Now().Add(-stuckRequestedAfter)

	tasks, err := p.taskRepo.ListStuckRequested(olderThan, pollBatchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		log.Printf("补发任务 %d (requested 超过 %v)", task.ID, stuckRequestedAfter)
		if err := p.processor.Dispatch(ctx, task); err != nil {
			log.Printf("任务 %d 补发失败: %v", task.ID, err)
		}
	}

	// worker 认领后挂掉的任务：先放回 requested 再补发
	stale, err := p.taskRepo.ListStuckDispatching(olderThan, pollBatchSize)
	if err != nil {
		return err
	}

	for _, task := range stale {
		requeued, err := p.taskRepo.RequeueStale(task.ID, olderThan)
		if err != nil {
			log.Printf("任务 %d 收回失败: %v", task.ID, err)
			continue
		}
		if !requeued {
			continue
		}
		log.Printf("补发任务 %d (dispatching 超过 %v)", task.ID, stuckRequestedAfter)
		if err := p.processor.Dispatch(ctx, task); err != nil {
			log.Printf("任务 %d 补发失败: %v", task.ID, err)
		}
	}
	return nil
}
