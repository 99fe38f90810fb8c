package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
)

var nextUserID int64 = 100000

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		ID:       atomic.AddInt64(&nextUserID, 1),
		Username: "testuser",
		Plan:     "free",
		Language: "ru",
	}

	for _, opt := range opts {
		opt(user)
	}
	user.Balance = user.SubscriptionCoins + user.PermanentCoins

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithCoins 设置双余额
func WithCoins(subscription, permanent int) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionCoins = subscription
		u.PermanentCoins = permanent
	}
}

// WithPlan 设置套餐
func WithPlan(plan string) func(*model.User) {
	return func(u *model.User) {
		u.Plan = plan
	}
}

// WithBlocked 设置封禁状态
func WithBlocked(blocked bool) func(*model.User) {
	return func(u *model.User) {
		u.IsBlocked = blocked
	}
}

// TestSubscription 创建测试订阅
func TestSubscription(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:       userID,
		Plan:         "standard",
		CoinsGranted: 400,
		PriceRub:     2990,
		StartDate:    time.Now(),
		EndDate:      time.Now().Add(30 * 24 * time.Hour),
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithEndDate 设置到期时间
func WithEndDate(end time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.EndDate = end
	}
}

// WithActive 设置激活状态
func WithActive(active bool) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.IsActive = active
	}
}

// WithWarnedAt 设置预警时间
func WithWarnedAt(at time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.WarnedAt = &at
	}
}

// TestTask 创建测试生成任务
func TestTask(t *testing.T, db *gorm.DB, userID int64, status string, opts ...func(*model.GenerationTask)) *model.GenerationTask {
	t.Helper()

	task := &model.GenerationTask{
		UserID:       userID,
		Provider:     "sora2",
		Feature:      "video_8s_audio",
		Prompt:       "a cat surfing a wave",
		Duration:     8,
		AspectRatio:  "9:16",
		WithAudio:    true,
		CostReserved: 24,
		Status:       status,
	}

	for _, opt := range opts {
		opt(task)
	}

	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}

	return task
}

// WithProviderTaskID 设置供应商任务 ID
func WithProviderTaskID(id string) func(*model.GenerationTask) {
	return func(task *model.GenerationTask) {
		task.ProviderTaskID = &id
	}
}

// WithDispatchedAt 设置分发时间
func WithDispatchedAt(at time.Time) func(*model.GenerationTask) {
	return func(task *model.GenerationTask) {
		task.DispatchedAt = &at
	}
}

// TestTransaction 创建测试交易
func TestTransaction(t *testing.T, db *gorm.DB, userID int64, txType string, delta, before int) *model.Transaction {
	t.Helper()

	tx := &model.Transaction{
		UserID:        userID,
		Type:          txType,
		CoinsDelta:    delta,
		BalanceBefore: before,
		BalanceAfter:  before + delta,
	}

	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return tx
}
