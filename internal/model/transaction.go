package model

import (
	"time"
)

// 交易类型
const (
	TxTypeSubscription = "subscription"
	TxTypeTopup        = "topup"
	TxTypeSpend        = "spend"
	TxTypeRefund       = "refund"
	TxTypeExpire       = "expire"
	TxTypeAdmin        = "admin"
)

// Transaction 账本行，只追加不修改
type Transaction struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	Type          string    `gorm:"size:20;not null" json:"type"`
	Feature       *string   `gorm:"size:50" json:"feature,omitempty"`
	CoinsDelta    int       `gorm:"not null" json:"coins_delta"`
	BalanceBefore int       `gorm:"not null" json:"balance_before"`
	BalanceAfter  int       `gorm:"not null" json:"balance_after"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	PaymentID     *string   `gorm:"size:100;uniqueIndex" json:"payment_id,omitempty"` // 外部支付 ID，防止重复入账
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
