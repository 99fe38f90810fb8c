package cron

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
	"github.com/kudoai/billing_go_server/internal/testutil"
)

func setupSweeper(t *testing.T) (*Service, *gorm.DB, *testutil.RecordingNotifier, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	accountService := service.NewAccountService(db, userRepo, txRepo)
	catalogService := service.NewCatalogService(&config.PricingConfig{
		Plans: map[string]config.PlanConfig{
			"standard": {Title: "Стандарт", PriceRub: 2990, Coins: 400, DurationDays: 30},
		},
	})
	subscriptionService := service.NewSubscriptionService(db, accountService, catalogService, subRepo, userRepo)

	notify := testutil.NewRecordingNotifier()
	svc := NewService(subscriptionService, subRepo, notify, 60, 3)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return svc, db, notify, cleanup
}

func TestNewService(t *testing.T) {
	svc, _, _, cleanup := setupSweeper(t)
	defer cleanup()

	assert.NotNil(t, svc)
	assert.NotNil(t, svc.stopChan)
	assert.Equal(t, time.Hour, svc.interval)
	assert.Equal(t, 3*24*time.Hour, svc.warnBefore)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(nil, nil, testutil.NewRecordingNotifier(), 0, 0)

	assert.Equal(t, time.Hour, svc.interval)
	assert.Equal(t, 3*24*time.Hour, svc.warnBefore)
}

func TestService_StartAndStop(t *testing.T) {
	svc, _, _, cleanup := setupSweeper(t)
	defer cleanup()

	svc.Start()
	time.Sleep(10 * time.Millisecond)
	svc.Stop()
	time.Sleep(10 * time.Millisecond)
}

func TestSweepExpired(t *testing.T) {
	svc, db, notify, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(150, 80), testutil.WithPlan("standard"))
	sub := testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(-time.Hour)))

	processed := svc.SweepExpired()
	assert.Equal(t, 1, processed)

	// 订阅停用
	var updatedSub model.Subscription
	require.NoError(t, db.First(&updatedSub, sub.ID).Error)
	assert.False(t, updatedSub.IsActive)

	// 订阅币清零，永久币保留
	var updatedUser model.User
	require.NoError(t, db.First(&updatedUser, user.ID).Error)
	assert.Equal(t, 0, updatedUser.SubscriptionCoins)
	assert.Equal(t, 80, updatedUser.PermanentCoins)
	assert.Equal(t, 80, updatedUser.Balance)
	assert.Equal(t, "free", updatedUser.Plan)

	// 清零留下 expire 账本行
	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, model.TxTypeExpire).First(&tx).Error)
	assert.Equal(t, -150, tx.CoinsDelta)
	assert.Equal(t, 230, tx.BalanceBefore)
	assert.Equal(t, 80, tx.BalanceAfter)

	// 用户收到订阅到期通知
	require.Equal(t, 1, notify.MessageCount())
	assert.Equal(t, user.ID, notify.Messages[0].ChatID)
	assert.Contains(t, notify.Messages[0].Text, "подписка истекла")
}

func TestSweepExpired_OtherActiveSubscription(t *testing.T) {
	svc, db, notify, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(500, 0), testutil.WithPlan("standard"))
	expired := testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(-time.Hour)))
	// 用户续费了新订阅，旧订阅到期不能清零币
	testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(25*24*time.Hour)))

	processed := svc.SweepExpired()
	assert.Equal(t, 1, processed)

	var updatedSub model.Subscription
	require.NoError(t, db.First(&updatedSub, expired.ID).Error)
	assert.False(t, updatedSub.IsActive)

	var updatedUser model.User
	require.NoError(t, db.First(&updatedUser, user.ID).Error)
	assert.Equal(t, 500, updatedUser.SubscriptionCoins)
	assert.Equal(t, "standard", updatedUser.Plan)

	// 续费的用户不发到期通知
	assert.Equal(t, 0, notify.MessageCount())
}

func TestSweepExpired_Idempotent(t *testing.T) {
	svc, db, _, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))
	testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(-time.Hour)))

	assert.Equal(t, 1, svc.SweepExpired())
	assert.Equal(t, 0, svc.SweepExpired())

	// expire 账本行只有一条
	var count int64
	db.Model(&model.Transaction{}).
		Where("user_id = ? AND type = ?", user.ID, model.TxTypeExpire).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSweepExpired_NoExpired(t *testing.T) {
	svc, db, _, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))
	testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(10*24*time.Hour)))

	assert.Equal(t, 0, svc.SweepExpired())
}

func TestSweepWarnings(t *testing.T) {
	svc, db, notify, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))
	sub := testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(2*24*time.Hour)))

	sent := svc.SweepWarnings()
	assert.Equal(t, 1, sent)
	require.Equal(t, 1, notify.MessageCount())
	assert.Equal(t, user.ID, notify.Messages[0].ChatID)

	var updatedSub model.Subscription
	require.NoError(t, db.First(&updatedSub, sub.ID).Error)
	assert.NotNil(t, updatedSub.WarnedAt)

	// 同一订阅不会重复提醒
	assert.Equal(t, 0, svc.SweepWarnings())
	assert.Equal(t, 1, notify.MessageCount())
}

func TestSweepWarnings_FarFromExpiry(t *testing.T) {
	svc, db, notify, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))
	testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(20*24*time.Hour)))

	assert.Equal(t, 0, svc.SweepWarnings())
	assert.Equal(t, 0, notify.MessageCount())
}

func TestSweepWarnings_NotifyFailure(t *testing.T) {
	svc, db, notify, cleanup := setupSweeper(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))
	sub := testutil.TestSubscription(t, db, user.ID,
		testutil.WithEndDate(time.Now().Add(2*24*time.Hour)))

	notify.FailWith = errors.New("telegram down")
	assert.Equal(t, 0, svc.SweepWarnings())

	// 发送失败不落 warned_at，下一轮还会重试
	var updatedSub model.Subscription
	require.NoError(t, db.First(&updatedSub, sub.ID).Error)
	assert.Nil(t, updatedSub.WarnedAt)

	notify.FailWith = nil
	assert.Equal(t, 1, svc.SweepWarnings())
	assert.Equal(t, user.ID, notify.Messages[0].ChatID)
}
