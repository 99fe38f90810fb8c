package model

import (
	"time"
)

// 生成任务状态
const (
	TaskStatusRequested   = "requested"   // 已扣费，尚未提交给供应商
	TaskStatusDispatching = "dispatching" // 已被某个 worker 认领，提交中
	TaskStatusQueued      = "queued"      // 供应商已受理，等待结果
	TaskStatusSucceeded   = "succeeded"
	TaskStatusFailed      = "failed"
	TaskStatusAbandoned   = "abandoned" // 超过最大生命周期，已自动退款
)

// GenerationTask 生成任务的持久化记录（outbox）。
// 任务先落库再分发，进程重启后由恢复扫描接管，不会丢单。
type GenerationTask struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	Provider       string     `gorm:"size:20;not null" json:"provider"` // sora2, veo3
	Feature        string     `gorm:"size:50;not null" json:"feature"`
	Prompt         string     `gorm:"type:text" json:"prompt"`
	Duration       int        `json:"duration"`
	AspectRatio    string     `gorm:"size:10" json:"aspect_ratio"`
	WithAudio      bool       `json:"with_audio"`
	CostReserved   int        `gorm:"not null" json:"cost_reserved"` // 扣费时的价格，退款以此为准
	Status         string     `gorm:"size:20;default:requested;index" json:"status"`
	ProviderTaskID *string    `gorm:"size:100;uniqueIndex" json:"provider_task_id,omitempty"`
	ResultURL      string     `gorm:"size:500" json:"result_url,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (GenerationTask) TableName() string {
	return "generation_tasks"
}
