package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/repository"
)

const PlanFree = "free"

// SubscriptionService 订阅生命周期：购买、到期、状态查询
type SubscriptionService struct {
	db             *gorm.DB
	accountService *AccountService
	catalogService *CatalogService
	subRepo        *repository.SubscriptionRepository
	userRepo       *repository.UserRepository
}

func NewSubscriptionService(
	db *gorm.DB,
	accountService *AccountService,
	catalogService *CatalogService,
	subRepo *repository.SubscriptionRepository,
	userRepo *repository.UserRepository,
) *SubscriptionService {
	return &SubscriptionService{
		db:             db,
		accountService: accountService,
		catalogService: catalogService,
		subRepo:        subRepo,
		userRepo:       userRepo,
	}
}

// Purchase 开通订阅：建订阅记录、发订阅币、更新用户套餐。
// 三步在一个事务里完成，任何一步失败整体回滚，网关重投不会留下半截订阅。
// paymentID 透传到账本行，便于和支付网关对账
func (s *SubscriptionService) Purchase(userID int64, planName, paymentID string) (*model.Subscription, error) {
	plan, err := s.catalogService.GetPlan(planName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &model.Subscription{
		UserID:       userID,
		Plan:         planName,
		CoinsGranted: plan.Coins,
		PriceRub:     plan.PriceRub,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, plan.DurationDays),
		IsActive:     true,
	}
	if paymentID != "" {
		sub.PaymentID = &paymentID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.subRepo.WithTx(tx).Create(sub); err != nil {
			return err
		}

		_, err := s.accountService.WithTx(tx).AddSubscriptionCoins(userID, plan.Coins, LedgerEntry{
			Type:      model.TxTypeSubscription,
			Note:      fmt.Sprintf("订阅 %s (%d 天)", plan.Title, plan.DurationDays),
			PaymentID: paymentID,
		})
		if err != nil {
			return err
		}

		return s.userRepo.WithTx(tx).UpdatePlan(userID, planName)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("用户 %d 开通订阅 %s，发放 %d 订阅币", userID, planName, plan.Coins)
	return sub, nil
}

// Expire 处理一条到期订阅，返回用户是否真正掉回 free。
// 只有当该用户没有其他仍在生效的订阅时才清零订阅币：
// 用户可能在旧订阅到期前又买了新订阅，新订阅的币不能跟着旧订阅蒸发
func (s *SubscriptionService) Expire(sub *model.Subscription) (bool, error) {
	now := time.Now()

	others, err := s.subRepo.CountOtherActive(sub.UserID, sub.ID, now)
	if err != nil {
		return false, err
	}

	lapsed := others == 0
	if lapsed {
		removed, err := s.accountService.ResetSubscriptionCoins(
			sub.UserID, fmt.Sprintf("订阅 %s 到期", sub.Plan))
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return false, err
		}
		if removed > 0 {
			log.Printf("用户 %d 订阅到期，清零 %d 订阅币", sub.UserID, removed)
		}
		if err := s.userRepo.UpdatePlan(sub.UserID, PlanFree); err != nil {
			return false, err
		}
	}

	return lapsed, s.subRepo.Deactivate(sub.ID)
}

// Status 查询用户当前订阅状态
func (s *SubscriptionService) Status(userID int64) (*dto.SubscriptionStatus, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	sub, err := s.subRepo.GetActiveByUserID(userID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.SubscriptionStatus{
				HasActive: false,
				Plan:      PlanFree,
				Balance:   user.Balance,
			}, nil
		}
		return nil, err
	}

	daysLeft := int(sub.EndDate.Sub(now).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}
	return &dto.SubscriptionStatus{
		HasActive: true,
		Plan:      sub.Plan,
		ExpiresAt: sub.EndDate.Format(time.RFC3339),
		DaysLeft:  daysLeft,
		Balance:   user.Balance,
	}, nil
}

// History 用户的历史订阅记录
func (s *SubscriptionService) History(userID int64) ([]*model.Subscription, error) {
	return s.subRepo.ListByUserID(userID)
}
