package service

import (
	"errors"
	"fmt"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/repository"
)

var ErrUserBlocked = errors.New("账号已被封禁")

// BillingService 计费网关：访问检查、按功能扣费、退款。
// 所有余额变动都经过 AccountService，保证每次变动恰好一条账本记录
type BillingService struct {
	accountService *AccountService
	pricingService *PricingService
	userRepo       *repository.UserRepository
}

func NewBillingService(
	accountService *AccountService,
	pricingService *PricingService,
	userRepo *repository.UserRepository,
) *BillingService {
	return &BillingService{
		accountService: accountService,
		pricingService: pricingService,
		userRepo:       userRepo,
	}
}

// CheckAccess 检查用户能否使用某功能：未封禁且余额足够。
// 只读操作，不扣费
func (b *BillingService) CheckAccess(userID int64, feature Feature) (*dto.AccessInfo, error) {
	cost, err := b.pricingService.Cost(feature)
	if err != nil {
		return nil, err
	}

	user, err := b.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.IsBlocked {
		return nil, ErrUserBlocked
	}

	return &dto.AccessInfo{
		Allowed: user.Balance >= cost,
		Feature: feature.Key(),
		Cost:    cost,
		Balance: user.Balance,
	}, nil
}

// DeductForFeature 按功能扣费。优先扣订阅币，不足部分扣永久币
func (b *BillingService) DeductForFeature(userID int64, feature Feature) (*dto.DeductResult, error) {
	cost, err := b.pricingService.Cost(feature)
	if err != nil {
		return nil, err
	}

	blocked, err := b.userRepo.IsBlocked(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if blocked {
		return nil, ErrUserBlocked
	}

	split, err := b.accountService.Deduct(userID, cost, LedgerEntry{
		Type:    model.TxTypeSpend,
		Feature: feature.Key(),
	})
	if err != nil {
		return nil, err
	}

	return &dto.DeductResult{
		Feature:                  feature.Key(),
		CoinsSpent:               cost,
		DeductedFromSubscription: split.FromSubscription,
		DeductedFromPermanent:    split.FromPermanent,
		Balance:                  split.Balance,
	}, nil
}

// RefundFeature 按功能全额退款。退款一律进永久币，
// 即使扣费时花的是订阅币（订阅可能已过期，退订阅币会直接蒸发）
func (b *BillingService) RefundFeature(userID int64, feature Feature, reason string) (*dto.BalanceInfo, error) {
	cost, err := b.pricingService.Cost(feature)
	if err != nil {
		return nil, err
	}
	return b.RefundAmount(userID, cost, feature.Key(), reason)
}

// RefundAmount 按金额退款到永久币
func (b *BillingService) RefundAmount(userID int64, amount int, featureKey, reason string) (*dto.BalanceInfo, error) {
	note := reason
	if note == "" {
		note = fmt.Sprintf("退款: %s", featureKey)
	}
	return b.accountService.Refund(userID, amount, LedgerEntry{
		Type:    model.TxTypeRefund,
		Feature: featureKey,
		Note:    note,
	})
}
