package model

import (
	"time"
)

// Subscription 订阅记录，过期后只停用不删除（审计用）
type Subscription struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	Plan         string     `gorm:"size:20;not null" json:"plan"` // lite, standard, pro
	CoinsGranted int        `gorm:"not null" json:"coins_granted"`
	PriceRub     int        `json:"price_rub,omitempty"`
	StartDate    time.Time  `gorm:"not null" json:"start_date"`
	EndDate      time.Time  `gorm:"not null;index" json:"end_date"`
	// 没有 default 标签：gorm 会把零值 false 当缺省漏掉，停用状态写不进去
	IsActive     bool       `gorm:"not null;index" json:"is_active"`
	PaymentID    *string    `gorm:"size:100" json:"payment_id,omitempty"`
	WarnedAt     *time.Time `json:"warned_at,omitempty"` // 到期预警已发送时间，防止重复提醒
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
