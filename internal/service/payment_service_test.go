package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/payment"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/testutil"
)

func setupPaymentService(t *testing.T, gatewayURL string) (*PaymentService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	accountService := NewAccountService(db, userRepo, txRepo)
	catalogService := NewCatalogService(testPricingConfig())
	subscriptionService := NewSubscriptionService(db, accountService, catalogService, subRepo, userRepo)

	gateway := payment.NewClient(&config.PaymentConfig{
		ShopID:    "shop-1",
		SecretKey: "secret",
		BaseURL:   gatewayURL,
		ReturnURL: "https://t.me/kudoaibot",
	})

	return NewPaymentService(accountService, subscriptionService, catalogService, txRepo, userRepo, gateway), db
}

func succeededWebhook(paymentID string, userID int64, paymentType, planOrCoins string) *dto.PaymentWebhook {
	return &dto.PaymentWebhook{
		Event: "payment.succeeded",
		Object: &dto.PaymentObject{
			ID: paymentID,
			Metadata: dto.PaymentMetadata{
				UserID:      strconv.FormatInt(userID, 10),
				PaymentType: paymentType,
				PlanOrCoins: planOrCoins,
			},
		},
	}
}

func TestPaymentService_CreatePayment_Subscription(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 网关要求 basic auth 和幂等键
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pay-abc","status":"pending","confirmation":{"confirmation_url":"https://yookassa.ru/confirm/pay-abc"}}`))
	}))
	defer server.Close()

	service, db := setupPaymentService(t, server.URL)
	user := testutil.TestUser(t, db)

	resp, err := service.CreatePayment(context.Background(), user.ID, &dto.CreatePaymentRequest{
		PaymentType: PaymentTypeSubscription,
		Plan:        "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-abc", resp.PaymentID)
	assert.Equal(t, "https://yookassa.ru/confirm/pay-abc", resp.ConfirmationURL)
	assert.Equal(t, 2990, resp.AmountRub)

	// 金额和元数据按协议编码
	amount := captured["amount"].(map[string]any)
	assert.Equal(t, "2990.00", amount["value"])
	assert.Equal(t, "RUB", amount["currency"])
	meta := captured["metadata"].(map[string]any)
	assert.Equal(t, strconv.FormatInt(user.ID, 10), meta["user_id"])
	assert.Equal(t, "subscription", meta["payment_type"])
	assert.Equal(t, "standard", meta["plan_or_coins"])
}

func TestPaymentService_CreatePayment_UnknownPlan(t *testing.T) {
	service, db := setupPaymentService(t, "http://127.0.0.1:0")
	user := testutil.TestUser(t, db)

	_, err := service.CreatePayment(context.Background(), user.ID, &dto.CreatePaymentRequest{
		PaymentType: PaymentTypeSubscription,
		Plan:        "ultra",
	})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPaymentService_ProcessWebhook_Subscription(t *testing.T) {
	service, db := setupPaymentService(t, "")
	user := testutil.TestUser(t, db)

	err := service.ProcessWebhook(succeededWebhook("pay-1", user.ID, PaymentTypeSubscription, "standard"))
	require.NoError(t, err)

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 400, fresh.SubscriptionCoins)
	assert.Equal(t, "standard", fresh.Plan)
}

func TestPaymentService_ProcessWebhook_Topup_WithBonus(t *testing.T) {
	service, db := setupPaymentService(t, "")
	user := testutil.TestUser(t, db)

	err := service.ProcessWebhook(succeededWebhook("pay-2", user.ID, PaymentTypeTopup, "500"))
	require.NoError(t, err)

	// 500 + 赠送 50，全部进永久币
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 0, fresh.SubscriptionCoins)
	assert.Equal(t, 550, fresh.PermanentCoins)

	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, model.TxTypeTopup).First(&tx).Error)
	require.NotNil(t, tx.PaymentID)
	assert.Equal(t, "pay-2", *tx.PaymentID)
}

func TestPaymentService_ProcessWebhook_Duplicate(t *testing.T) {
	service, db := setupPaymentService(t, "")
	user := testutil.TestUser(t, db)

	webhook := succeededWebhook("pay-3", user.ID, PaymentTypeTopup, "100")
	require.NoError(t, service.ProcessWebhook(webhook))

	// 网关重发同一笔支付
	err := service.ProcessWebhook(webhook)
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	// 只入账一次
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 100, fresh.PermanentCoins)

	var count int64
	db.Model(&model.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPaymentService_ProcessWebhook_IgnoresOtherEvents(t *testing.T) {
	service, db := setupPaymentService(t, "")
	user := testutil.TestUser(t, db)

	webhook := succeededWebhook("pay-4", user.ID, PaymentTypeTopup, "100")
	webhook.Event = "payment.canceled"
	require.NoError(t, service.ProcessWebhook(webhook))

	var count int64
	db.Model(&model.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestPaymentService_ProcessWebhook_BadData(t *testing.T) {
	service, db := setupPaymentService(t, "")
	user := testutil.TestUser(t, db)

	// 缺支付对象
	err := service.ProcessWebhook(&dto.PaymentWebhook{Event: "payment.succeeded"})
	assert.ErrorIs(t, err, ErrBadWebhook)

	// user_id 不是数字
	webhook := succeededWebhook("pay-5", user.ID, PaymentTypeTopup, "100")
	webhook.Object.Metadata.UserID = "abc"
	err = service.ProcessWebhook(webhook)
	assert.ErrorIs(t, err, ErrBadWebhook)

	// 未知支付类型
	webhook = succeededWebhook("pay-6", user.ID, "gift", "100")
	err = service.ProcessWebhook(webhook)
	assert.ErrorIs(t, err, ErrBadWebhook)
}
