package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/payment"
	"github.com/kudoai/billing_go_server/internal/repository"
)

var (
	ErrDuplicatePayment = errors.New("支付已处理")
	ErrBadWebhook       = errors.New("webhook 数据不完整")
)

const (
	PaymentTypeSubscription = "subscription"
	PaymentTypeTopup        = "topup"

	eventPaymentSucceeded = "payment.succeeded"
)

// PaymentService 支付流程：创建支付、处理 webhook 回调。
// 幂等性依赖 transactions.payment_id 唯一索引 + 入账前查重，
// 网关重发同一笔支付时第二次直接跳过
type PaymentService struct {
	accountService      *AccountService
	subscriptionService *SubscriptionService
	catalogService      *CatalogService
	txRepo              *repository.TransactionRepository
	userRepo            *repository.UserRepository
	gateway             *payment.Client
}

func NewPaymentService(
	accountService *AccountService,
	subscriptionService *SubscriptionService,
	catalogService *CatalogService,
	txRepo *repository.TransactionRepository,
	userRepo *repository.UserRepository,
	gateway *payment.Client,
) *PaymentService {
	return &PaymentService{
		accountService:      accountService,
		subscriptionService: subscriptionService,
		catalogService:      catalogService,
		txRepo:              txRepo,
		userRepo:            userRepo,
		gateway:             gateway,
	}
}

// CreatePayment 创建一笔支付，元数据里带上用户和商品信息，webhook 时原样带回
func (p *PaymentService) CreatePayment(ctx context.Context, userID int64, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	var amountRub int
	var description, planOrCoins string

	switch req.PaymentType {
	case PaymentTypeSubscription:
		plan, err := p.catalogService.GetPlan(req.Plan)
		if err != nil {
			return nil, err
		}
		amountRub = plan.PriceRub
		description = fmt.Sprintf("订阅 %s", plan.Title)
		planOrCoins = req.Plan
	case PaymentTypeTopup:
		pack, err := p.catalogService.GetTopupPack(req.Coins)
		if err != nil {
			return nil, err
		}
		amountRub = pack.PriceRub
		description = fmt.Sprintf("充值 %d 金币", pack.Coins)
		planOrCoins = strconv.Itoa(pack.Coins)
	default:
		return nil, fmt.Errorf("未知的支付类型: %s", req.PaymentType)
	}

	result, err := p.gateway.Create(ctx, &payment.CreateRequest{
		AmountRub:   amountRub,
		Description: description,
		Metadata: map[string]string{
			"user_id":       strconv.FormatInt(userID, 10),
			"payment_type":  req.PaymentType,
			"plan_or_coins": planOrCoins,
		},
	})
	if err != nil {
		return nil, err
	}

	return &dto.CreatePaymentResponse{
		PaymentID:       result.PaymentID,
		ConfirmationURL: result.ConfirmationURL,
		AmountRub:       amountRub,
	}, nil
}

// ProcessWebhook 处理支付成功回调。
// 返回 ErrDuplicatePayment 表示这笔支付已入账，调用方应回 200 让网关停止重发；
// 其他错误属于内部故障，应回 5xx 让网关稍后重发
func (p *PaymentService) ProcessWebhook(webhook *dto.PaymentWebhook) error {
	if webhook.Event != eventPaymentSucceeded {
		log.Printf("忽略 webhook 事件: %s", webhook.Event)
		return nil
	}
	if webhook.Object == nil || webhook.Object.ID == "" {
		return ErrBadWebhook
	}

	paymentID := webhook.Object.ID
	exists, err := p.txRepo.ExistsByPaymentID(paymentID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("支付 %s 已入账，跳过重复 webhook", paymentID)
		return ErrDuplicatePayment
	}

	meta := webhook.Object.Metadata
	userID, err := strconv.ParseInt(meta.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("%w: user_id=%q", ErrBadWebhook, meta.UserID)
	}

	switch meta.PaymentType {
	case PaymentTypeSubscription:
		_, err = p.subscriptionService.Purchase(userID, meta.PlanOrCoins, paymentID)
		return err
	case PaymentTypeTopup:
		coins, convErr := strconv.Atoi(meta.PlanOrCoins)
		if convErr != nil || coins <= 0 {
			return fmt.Errorf("%w: plan_or_coins=%q", ErrBadWebhook, meta.PlanOrCoins)
		}
		return p.creditTopup(userID, coins, paymentID)
	default:
		return fmt.Errorf("%w: payment_type=%q", ErrBadWebhook, meta.PaymentType)
	}
}

// creditTopup 充值入账，充值包的赠送币一并发放，全部进永久币
func (p *PaymentService) creditTopup(userID int64, coins int, paymentID string) error {
	total := coins
	note := fmt.Sprintf("充值 %d 金币", coins)
	if pack, err := p.catalogService.GetTopupPack(coins); err == nil && pack.BonusCoins > 0 {
		total += pack.BonusCoins
		note = fmt.Sprintf("充值 %d 金币 + 赠送 %d", coins, pack.BonusCoins)
	}

	_, err := p.accountService.AddPermanentCoins(userID, total, LedgerEntry{
		Type:      model.TxTypeTopup,
		Note:      note,
		PaymentID: paymentID,
	})
	if err != nil {
		return err
	}
	log.Printf("用户 %d 充值入账 %d 永久币 (payment=%s)", userID, total, paymentID)
	return nil
}
