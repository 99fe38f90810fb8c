package model

import (
	"time"
)

type User struct {
	ID                int64     `gorm:"primaryKey;autoIncrement:false" json:"id"` // 外部聊天平台的用户 ID
	Username          string    `gorm:"size:100" json:"username,omitempty"`
	SubscriptionCoins int       `gorm:"not null;default:0" json:"subscription_coins"`
	PermanentCoins    int       `gorm:"not null;default:0" json:"permanent_coins"`
	Balance           int       `gorm:"not null;default:0" json:"balance"` // 冗余字段，必须等于两个余额之和
	Plan              string    `gorm:"size:20;default:free" json:"plan"`
	IsBlocked         bool      `gorm:"default:false" json:"is_blocked"`
	Language          string    `gorm:"size:10;default:ru" json:"language"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
