package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/testutil"
)

func setupBillingService(t *testing.T) (*BillingService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	accountService := NewAccountService(db, userRepo, txRepo)
	pricingService := NewPricingService(testVideoPricing())

	return NewBillingService(accountService, pricingService, userRepo), db
}

func TestBillingService_CheckAccess(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(30, 0))

	// 24 币的功能，30 币余额
	info, err := service.CheckAccess(user.ID, VideoFeature(8, true))
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, "video_8s_audio", info.Feature)
	assert.Equal(t, 24, info.Cost)
	assert.Equal(t, 30, info.Balance)

	// 45 币的功能，余额不够
	info, err = service.CheckAccess(user.ID, VideoFeature(15, true))
	require.NoError(t, err)
	assert.False(t, info.Allowed)
}

func TestBillingService_CheckAccess_Blocked(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0), testutil.WithBlocked(true))

	_, err := service.CheckAccess(user.ID, VideoFeature(8, true))
	assert.ErrorIs(t, err, ErrUserBlocked)
}

func TestBillingService_DeductForFeature(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(10, 30))

	result, err := service.DeductForFeature(user.ID, VideoFeature(8, true))
	require.NoError(t, err)
	assert.Equal(t, "video_8s_audio", result.Feature)
	assert.Equal(t, 24, result.CoinsSpent)
	assert.Equal(t, 10, result.DeductedFromSubscription)
	assert.Equal(t, 14, result.DeductedFromPermanent)
	assert.Equal(t, 16, result.Balance.Total)

	// 账本里记录的是功能标识
	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&tx).Error)
	require.NotNil(t, tx.Feature)
	assert.Equal(t, "video_8s_audio", *tx.Feature)
}

func TestBillingService_DeductForFeature_Blocked(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0), testutil.WithBlocked(true))

	_, err := service.DeductForFeature(user.ID, Feature{Kind: FeatureImageBasic})
	assert.ErrorIs(t, err, ErrUserBlocked)

	// 封禁用户不产生扣费
	balance := 0
	db.Model(&model.User{}).Where("id = ?", user.ID).Select("balance").Scan(&balance)
	assert.Equal(t, 100, balance)
}

func TestBillingService_DeductForFeature_UnknownFeature(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(100, 0))

	_, err := service.DeductForFeature(user.ID, Feature{Kind: "face_swap"})
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestBillingService_RefundFeature(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(30, 0))

	_, err := service.DeductForFeature(user.ID, VideoFeature(8, true))
	require.NoError(t, err)

	balance, err := service.RefundFeature(user.ID, VideoFeature(8, true), "生成失败")
	require.NoError(t, err)
	// 退款进永久币
	assert.Equal(t, 6, balance.SubscriptionCoins)
	assert.Equal(t, 24, balance.PermanentCoins)

	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, model.TxTypeRefund).First(&tx).Error)
	assert.Equal(t, "生成失败", tx.Note)
}

func TestBillingService_RefundAmount_DefaultNote(t *testing.T) {
	service, db := setupBillingService(t)

	user := testutil.TestUser(t, db, testutil.WithCoins(0, 0))

	_, err := service.RefundAmount(user.ID, 24, "video_8s_audio", "")
	require.NoError(t, err)

	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&tx).Error)
	assert.Equal(t, "退款: video_8s_audio", tx.Note)
}
