package dto

// CreateTaskRequest 创建生成任务请求
type CreateTaskRequest struct {
	Provider    string `json:"provider" binding:"required,oneof=sora2 veo3"`
	Prompt      string `json:"prompt" binding:"required,max=3000"`
	Duration    int    `json:"duration,omitempty" binding:"omitempty,min=1,max=20"`
	AspectRatio string `json:"aspect_ratio,omitempty" binding:"omitempty,oneof=9:16 16:9 1:1"`
	WithAudio   bool   `json:"with_audio,omitempty"`
}

// CreateTaskResponse 创建生成任务响应
type CreateTaskResponse struct {
	TaskID     int64        `json:"task_id"`
	Feature    string       `json:"feature"`
	CoinsSpent int          `json:"coins_spent"`
	Balance    *BalanceInfo `json:"balance"`
}

// TaskDetail 任务详情
type TaskDetail struct {
	ID           int64  `json:"id"`
	Provider     string `json:"provider"`
	Feature      string `json:"feature"`
	Status       string `json:"status"`
	CostReserved int    `json:"cost_reserved"`
	ResultURL    string `json:"result_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// ProviderCallback 供应商完成回调
type ProviderCallback struct {
	ID       string            `json:"id" binding:"required"`
	Status   string            `json:"status" binding:"required"` // completed, failed
	Output   *CallbackOutput   `json:"output,omitempty"`
	Error    *CallbackError    `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CallbackOutput 回调结果
type CallbackOutput struct {
	URL string `json:"url"`
}

// CallbackError 回调错误
type CallbackError struct {
	Message string `json:"message"`
}
