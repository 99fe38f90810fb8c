package dto

// PaymentWebhook 支付网关的 webhook 事件
type PaymentWebhook struct {
	Event  string         `json:"event" binding:"required"`
	Object *PaymentObject `json:"object" binding:"required"`
}

// PaymentObject webhook 中的支付对象
type PaymentObject struct {
	ID       string          `json:"id" binding:"required"`
	Metadata PaymentMetadata `json:"metadata"`
}

// PaymentMetadata 创建支付时写入的元数据，webhook 原样带回
type PaymentMetadata struct {
	UserID      string `json:"user_id"`
	PaymentType string `json:"payment_type"` // subscription, topup
	PlanOrCoins string `json:"plan_or_coins"`
}

// CreatePaymentRequest 创建支付请求
type CreatePaymentRequest struct {
	PaymentType string `json:"payment_type" binding:"required,oneof=subscription topup"`
	Plan        string `json:"plan,omitempty" binding:"omitempty,max=20"`
	Coins       int    `json:"coins,omitempty" binding:"omitempty,min=1"`
}

// CreatePaymentResponse 创建支付响应
type CreatePaymentResponse struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
	AmountRub       int    `json:"amount_rub"`
}

// SubscriptionStatus 订阅状态
type SubscriptionStatus struct {
	HasActive bool   `json:"has_active"`
	Plan      string `json:"plan"`
	ExpiresAt string `json:"expires_at,omitempty"`
	DaysLeft  int    `json:"days_left"`
	Balance   int    `json:"balance"`
}
