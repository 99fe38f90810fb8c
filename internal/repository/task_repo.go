package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(task *model.GenerationTask) error {
	return r.db.Create(task).Error
}

func (r *TaskRepository) GetByID(id int64) (*model.GenerationTask, error) {
	var task model.GenerationTask
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) GetByProviderTaskID(providerTaskID string) (*model.GenerationTask, error) {
	var task model.GenerationTask
	err := r.db.Where("provider_task_id = ?", providerTaskID).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Update(task *model.GenerationTask) error {
	return r.db.Save(task).Error
}

// 仍可流转到终态的状态集合
var activeStatuses = []string{
	model.TaskStatusRequested,
	model.TaskStatusDispatching,
	model.TaskStatusQueued,
}

// ClaimForDispatch 把任务从 requested 原子流转到 dispatching。
// 返回 false 表示任务已被别的流程认领或处理，调用方必须跳过
func (r *TaskRepository) ClaimForDispatch(id int64) (bool, error) {
	res := r.db.Model(&model.GenerationTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRequested).
		Update("status", model.TaskStatusDispatching)
	return res.RowsAffected > 0, res.Error
}

// RequeueStale 把卡在 dispatching 的任务放回 requested（worker 提交途中挂掉）。
// 条件里带 updated_at，刚被认领的任务不会被误收回
func (r *TaskRepository) RequeueStale(id int64, staleBefore time.Time) (bool, error) {
	res := r.db.Model(&model.GenerationTask{}).
		Where("id = ? AND status = ? AND updated_at <= ?", id, model.TaskStatusDispatching, staleBefore).
		Update("status", model.TaskStatusRequested)
	return res.RowsAffected > 0, res.Error
}

// MarkQueued 供应商受理后记录任务 ID
func (r *TaskRepository) MarkQueued(id int64, providerTaskID string, at time.Time) error {
	return r.db.Model(&model.GenerationTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           model.TaskStatusQueued,
		"provider_task_id": providerTaskID,
		"dispatched_at":    at,
	}).Error
}

// MarkSucceeded 条件流转到 succeeded。
// 返回 false 表示任务已在别处收尾（回调和轮询可能同时到达）
func (r *TaskRepository) MarkSucceeded(id int64, resultURL string, at time.Time) (bool, error) {
	res := r.db.Model(&model.GenerationTask{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusSucceeded,
			"result_url":   resultURL,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkFailed 条件流转到 failed，语义同 MarkSucceeded
func (r *TaskRepository) MarkFailed(id int64, errMsg string, at time.Time) (bool, error) {
	res := r.db.Model(&model.GenerationTask{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{
			"status":        model.TaskStatusFailed,
			"error_message": errMsg,
			"completed_at":  at,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkAbandoned 条件流转到 abandoned，语义同 MarkSucceeded
func (r *TaskRepository) MarkAbandoned(id int64, errMsg string, at time.Time) (bool, error) {
	res := r.db.Model(&model.GenerationTask{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{
			"status":        model.TaskStatusAbandoned,
			"error_message": errMsg,
			"completed_at":  at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *TaskRepository) ListByUserID(userID int64, limit, offset int) ([]*model.GenerationTask, error) {
	var tasks []*model.GenerationTask
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error
	return tasks, err
}

// ListQueued 获取等待结果的任务（轮询用）
func (r *TaskRepository) ListQueued(limit int) ([]*model.GenerationTask, error) {
	var tasks []*model.GenerationTask
	err := r.db.Where("status = ?", model.TaskStatusQueued).
		Order("dispatched_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ListStuckRequested 获取落库后未能入队的任务（重启恢复用）
func (r *TaskRepository) ListStuckRequested(olderThan time.Time, limit int) ([]*model.GenerationTask, error) {
	var tasks []*model.GenerationTask
	err := r.db.Where("status = ? AND created_at <= ?", model.TaskStatusRequested, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ListStuckDispatching 获取认领后长时间没有下文的任务（worker 提交途中挂掉）
func (r *TaskRepository) ListStuckDispatching(staleBefore time.Time, limit int) ([]*model.GenerationTask, error) {
	var tasks []*model.GenerationTask
	err := r.db.Where("status = ? AND updated_at <= ?", model.TaskStatusDispatching, staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ListOverdue 获取超过最大生命周期仍未完成的任务
func (r *TaskRepository) ListOverdue(dispatchedBefore time.Time, limit int) ([]*model.GenerationTask, error) {
	var tasks []*model.GenerationTask
	err := r.db.Where("status = ? AND dispatched_at <= ?", model.TaskStatusQueued, dispatchedBefore).
		Order("dispatched_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}
