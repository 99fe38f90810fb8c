package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/provider"
	"github.com/kudoai/billing_go_server/internal/pkg/pubsub"
	"github.com/kudoai/billing_go_server/internal/pkg/queue"
	"github.com/kudoai/billing_go_server/internal/pkg/session"
	"github.com/kudoai/billing_go_server/internal/repository"
)

var (
	ErrTaskNotFound  = errors.New("任务不存在")
	ErrNoLastRequest = errors.New("没有可重新生成的任务")
)

const (
	defaultDuration    = 8
	defaultAspectRatio = "9:16"
)

// GenerationService 生成任务编排：先扣费、再落库、最后进队列。
// 落库失败立即退款；进队列失败不退款，任务留在 requested 状态等恢复扫描补发
type GenerationService struct {
	billingService *BillingService
	taskRepo       *repository.TaskRepository
	taskQueue      *queue.Queue
	sessions       *session.Store
	publisher      *pubsub.Publisher
}

func NewGenerationService(
	billingService *BillingService,
	taskRepo *repository.TaskRepository,
	taskQueue *queue.Queue,
	sessions *session.Store,
	publisher *pubsub.Publisher,
) *GenerationService {
	return &GenerationService{
		billingService: billingService,
		taskRepo:       taskRepo,
		taskQueue:      taskQueue,
		sessions:       sessions,
		publisher:      publisher,
	}
}

// CreateTask 创建生成任务
func (g *GenerationService) CreateTask(ctx context.Context, userID int64, req *dto.CreateTaskRequest) (*dto.CreateTaskResponse, error) {
	if req.Duration == 0 {
		req.Duration = defaultDuration
	}
	if req.AspectRatio == "" {
		req.AspectRatio = defaultAspectRatio
	}

	feature := VideoFeature(req.Duration, req.WithAudio)
	deduct, err := g.billingService.DeductForFeature(userID, feature)
	if err != nil {
		return nil, err
	}

	task := &model.GenerationTask{
		UserID:       userID,
		Provider:     req.Provider,
		Feature:      feature.Key(),
		Prompt:       req.Prompt,
		Duration:     req.Duration,
		AspectRatio:  req.AspectRatio,
		WithAudio:    req.WithAudio,
		CostReserved: deduct.CoinsSpent,
		Status:       model.TaskStatusRequested,
	}
	if err := g.taskRepo.Create(task); err != nil {
		// 已扣费但任务没落库，立即退款
		if _, refundErr := g.billingService.RefundAmount(userID, deduct.CoinsSpent, feature.Key(), "任务创建失败，费用已退回"); refundErr != nil {
			log.Printf("任务落库失败且退款失败 user=%d cost=%d: %v", userID, deduct.CoinsSpent, refundErr)
		}
		return nil, err
	}

	if err := g.taskQueue.Push(ctx, &queue.TaskMessage{
		TaskID:      task.ID,
		UserID:      userID,
		Provider:    req.Provider,
		Feature:     feature.Key(),
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
		WithAudio:   req.WithAudio,
	}); err != nil {
		// 任务已落库，恢复扫描会补发，这里只记日志
		log.Printf("任务 %d 入队失败，等待恢复扫描: %v", task.ID, err)
	}

	if err := g.sessions.SaveLastRequest(ctx, userID, &session.LastRequest{
		Provider:    req.Provider,
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
		WithAudio:   req.WithAudio,
	}); err != nil {
		log.Printf("保存会话失败 user=%d: %v", userID, err)
	}

	g.publishProgress(ctx, task, pubsub.StepQueued, "")

	return &dto.CreateTaskResponse{
		TaskID:     task.ID,
		Feature:    feature.Key(),
		CoinsSpent: deduct.CoinsSpent,
		Balance:    deduct.Balance,
	}, nil
}

// Regenerate 用用户上一次的参数重新创建任务
func (g *GenerationService) Regenerate(ctx context.Context, userID int64) (*dto.CreateTaskResponse, error) {
	last, err := g.sessions.GetLastRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNoLastRequest
	}

	return g.CreateTask(ctx, userID, &dto.CreateTaskRequest{
		Provider:    last.Provider,
		Prompt:      last.Prompt,
		Duration:    last.Duration,
		AspectRatio: last.AspectRatio,
		WithAudio:   last.WithAudio,
	})
}

// HandleProviderCallback 处理供应商完成回调。
// 回调和轮询可能都到达，任务已终态时直接跳过
func (g *GenerationService) HandleProviderCallback(ctx context.Context, cb *dto.ProviderCallback) error {
	task, err := g.taskRepo.GetByProviderTaskID(cb.ID)
	if err != nil {
		return fmt.Errorf("%w: provider_task_id=%s", ErrTaskNotFound, cb.ID)
	}
	if isTerminal(task.Status) {
		log.Printf("任务 %d 已是终态 %s，忽略回调", task.ID, task.Status)
		return nil
	}

	switch cb.Status {
	case "completed", provider.StatusSucceeded:
		resultURL := ""
		if cb.Output != nil {
			resultURL = cb.Output.URL
		}
		return g.CompleteTask(ctx, task, resultURL)
	case provider.StatusFailed:
		errMsg := "生成失败"
		if cb.Error != nil && cb.Error.Message != "" {
			errMsg = cb.Error.Message
		}
		return g.FailTask(ctx, task, errMsg)
	default:
		log.Printf("任务 %d 回调状态 %s，继续等待", task.ID, cb.Status)
		return nil
	}
}

// CompleteTask 任务成功收尾。
// 回调和轮询拿到的都是快照，以数据库里的条件流转为准，抢输的一方直接退出
func (g *GenerationService) CompleteTask(ctx context.Context, task *model.GenerationTask, resultURL string) error {
	now := time.Now()
	done, err := g.taskRepo.MarkSucceeded(task.ID, resultURL, now)
	if err != nil {
		return err
	}
	if !done {
		log.Printf("任务 %d 已在别处收尾，跳过完成处理", task.ID)
		return nil
	}
	task.Status = model.TaskStatusSucceeded
	task.ResultURL = resultURL

	g.publishProgress(ctx, task, pubsub.StepDone, "")
	log.Printf("任务 %d 完成 user=%d", task.ID, task.UserID)
	return nil
}

// FailTask 任务失败收尾：标记失败并全额退款到永久币。
// 退款只跟着赢得状态流转的那一次走，失败最多退一次
func (g *GenerationService) FailTask(ctx context.Context, task *model.GenerationTask, errMsg string) error {
	now := time.Now()
	done, err := g.taskRepo.MarkFailed(task.ID, errMsg, now)
	if err != nil {
		return err
	}
	if !done {
		log.Printf("任务 %d 已在别处收尾，跳过失败处理", task.ID)
		return nil
	}
	task.Status = model.TaskStatusFailed

	if _, err := g.billingService.RefundAmount(task.UserID, task.CostReserved, task.Feature,
		fmt.Sprintf("生成失败退款 (任务 %d)", task.ID)); err != nil {
		// 状态已落库但退款失败，必须留下线索人工补账
		log.Printf("严重: 任务 %d 退款失败 user=%d cost=%d: %v", task.ID, task.UserID, task.CostReserved, err)
		return err
	}

	g.publishProgress(ctx, task, pubsub.StepFailed, errMsg)
	log.Printf("任务 %d 失败并退款 %d user=%d: %s", task.ID, task.CostReserved, task.UserID, errMsg)
	return nil
}

// AbandonTask 任务超时收尾：标记放弃并退款，同样只有赢得流转才退款
func (g *GenerationService) AbandonTask(ctx context.Context, task *model.GenerationTask, reason string) error {
	now := time.Now()
	done, err := g.taskRepo.MarkAbandoned(task.ID, reason, now)
	if err != nil {
		return err
	}
	if !done {
		log.Printf("任务 %d 已在别处收尾，跳过放弃处理", task.ID)
		return nil
	}
	task.Status = model.TaskStatusAbandoned

	if _, err := g.billingService.RefundAmount(task.UserID, task.CostReserved, task.Feature,
		fmt.Sprintf("任务超时退款 (任务 %d)", task.ID)); err != nil {
		log.Printf("严重: 任务 %d 超时退款失败 user=%d cost=%d: %v", task.ID, task.UserID, task.CostReserved, err)
		return err
	}

	g.publishProgress(ctx, task, pubsub.StepFailed, reason)
	log.Printf("任务 %d 超时放弃并退款 %d user=%d", task.ID, task.CostReserved, task.UserID)
	return nil
}

// GetTask 查询任务详情，只能查自己的
func (g *GenerationService) GetTask(userID, taskID int64) (*dto.TaskDetail, error) {
	task, err := g.taskRepo.GetByID(taskID)
	if err != nil || task.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return taskDetail(task), nil
}

// ListTasks 用户的任务列表
func (g *GenerationService) ListTasks(userID int64, limit, offset int) ([]*dto.TaskDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	tasks, err := g.taskRepo.ListByUserID(userID, limit, offset)
	if err != nil {
		return nil, err
	}

	details := make([]*dto.TaskDetail, 0, len(tasks))
	for _, task := range tasks {
		details = append(details, taskDetail(task))
	}
	return details, nil
}

func (g *GenerationService) publishProgress(ctx context.Context, task *model.GenerationTask, step, errMsg string) {
	if g.publisher == nil {
		return
	}
	msg := &pubsub.ProgressMessage{
		UserID:    task.UserID,
		TaskID:    task.ID,
		Provider:  task.Provider,
		Status:    task.Status,
		Step:      step,
		ResultURL: task.ResultURL,
		Error:     errMsg,
	}
	if err := g.publisher.PublishProgress(ctx, msg); err != nil {
		log.Printf("发布任务进度失败 task=%d: %v", task.ID, err)
	}
}

func isTerminal(status string) bool {
	switch status {
	case model.TaskStatusSucceeded, model.TaskStatusFailed, model.TaskStatusAbandoned:
		return true
	}
	return false
}

func taskDetail(task *model.GenerationTask) *dto.TaskDetail {
	detail := &dto.TaskDetail{
		ID:           task.ID,
		Provider:     task.Provider,
		Feature:      task.Feature,
		Status:       task.Status,
		CostReserved: task.CostReserved,
		ResultURL:    task.ResultURL,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt.Format(time.RFC3339),
	}
	if task.CompletedAt != nil {
		detail.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}
	return detail
}
