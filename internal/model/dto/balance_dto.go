package dto

// BalanceInfo 双余额信息
type BalanceInfo struct {
	SubscriptionCoins int `json:"subscription_coins"`
	PermanentCoins    int `json:"permanent_coins"`
	Total             int `json:"total"`
}

// AccessInfo 功能访问检查结果
type AccessInfo struct {
	Allowed bool   `json:"allowed"`
	Feature string `json:"feature"`
	Cost    int    `json:"cost"`
	Balance int    `json:"balance"`
}

// DeductResult 扣费结果，包含两个余额的拆分
type DeductResult struct {
	Feature                  string       `json:"feature"`
	CoinsSpent               int          `json:"coins_spent"`
	DeductedFromSubscription int          `json:"deducted_from_subscription"`
	DeductedFromPermanent    int          `json:"deducted_from_permanent"`
	Balance                  *BalanceInfo `json:"balance"`
}

// TransactionItem 交易记录列表项
type TransactionItem struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	Feature       string `json:"feature,omitempty"`
	CoinsDelta    int    `json:"coins_delta"`
	BalanceBefore int    `json:"balance_before"`
	BalanceAfter  int    `json:"balance_after"`
	Note          string `json:"note,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// SpendingStats 消费统计
type SpendingStats struct {
	TotalSpent    int                `json:"total_spent"`
	TotalReceived int                `json:"total_received"`
	SpendCount    int                `json:"spend_count"`
	ReceiveCount  int                `json:"receive_count"`
	Features      []FeatureSpendStat `json:"features"`
	PeriodDays    int                `json:"period_days"`
}

// FeatureSpendStat 按功能统计的消费
type FeatureSpendStat struct {
	Feature    string `json:"feature"`
	UsageCount int    `json:"usage_count"`
	TotalCoins int    `json:"total_coins"`
}

// SetBalanceRequest 管理员设置余额请求
type SetBalanceRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Balance int    `json:"balance" binding:"min=0"`
	Note    string `json:"note,omitempty" binding:"omitempty,max=200"`
}
