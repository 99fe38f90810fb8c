package service

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/repository"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrInvalidAmount     = errors.New("金额必须为正数")
)

// LedgerEntry 账本行的元信息，由调用方填写
type LedgerEntry struct {
	Type      string
	Feature   string
	Note      string
	PaymentID string
}

// DeductSplit 扣费在两个余额之间的拆分结果
type DeductSplit struct {
	FromSubscription int
	FromPermanent    int
	Balance          *dto.BalanceInfo
}

// AccountService 双余额账户。
// 每次变更都在一个事务内完成：行锁读取 → 改余额 → 写一条账本行。
// 账本是事实来源，用户表上的余额只是投影。
type AccountService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	txRepo   *repository.TransactionRepository
}

func NewAccountService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	txRepo *repository.TransactionRepository,
) *AccountService {
	return &AccountService{
		db:       db,
		userRepo: userRepo,
		txRepo:   txRepo,
	}
}

// WithTx 返回绑定到外层事务的账户服务，余额变更随外层事务一起提交或回滚
func (s *AccountService) WithTx(tx *gorm.DB) *AccountService {
	return &AccountService{
		db:       tx,
		userRepo: s.userRepo,
		txRepo:   s.txRepo,
	}
}

// GetBalance 获取双余额
func (s *AccountService) GetBalance(userID int64) (*dto.BalanceInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return balanceInfo(user), nil
}

// AddSubscriptionCoins 充入订阅金币（随订阅到期一起清零）
func (s *AccountService) AddSubscriptionCoins(userID int64, amount int, entry LedgerEntry) (*dto.BalanceInfo, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.mutate(userID, func(u *model.User) (int, error) {
		u.SubscriptionCoins += amount
		return amount, nil
	}, entry)
	if err != nil {
		return nil, err
	}
	log.Printf("Balance +%d subscription coins for user %d, total %d", amount, userID, user.Balance)
	return balanceInfo(user), nil
}

// AddPermanentCoins 充入永久金币（不过期）
func (s *AccountService) AddPermanentCoins(userID int64, amount int, entry LedgerEntry) (*dto.BalanceInfo, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.mutate(userID, func(u *model.User) (int, error) {
		u.PermanentCoins += amount
		return amount, nil
	}, entry)
	if err != nil {
		return nil, err
	}
	log.Printf("Balance +%d permanent coins for user %d, total %d", amount, userID, user.Balance)
	return balanceInfo(user), nil
}

// Deduct 扣费。先扣订阅金币，不足部分从永久金币扣
func (s *AccountService) Deduct(userID int64, amount int, entry LedgerEntry) (*DeductSplit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	split := &DeductSplit{}
	user, err := s.mutate(userID, func(u *model.User) (int, error) {
		total := u.SubscriptionCoins + u.PermanentCoins
		if total < amount {
			return 0, fmt.Errorf("%w: 需要 %d，可用 %d", ErrInsufficientFunds, amount, total)
		}

		fromSub := amount
		if fromSub > u.SubscriptionCoins {
			fromSub = u.SubscriptionCoins
		}
		fromPerm := amount - fromSub

		u.SubscriptionCoins -= fromSub
		u.PermanentCoins -= fromPerm
		split.FromSubscription = fromSub
		split.FromPermanent = fromPerm
		return -amount, nil
	}, entry)
	if err != nil {
		return nil, err
	}

	split.Balance = balanceInfo(user)
	log.Printf("Balance -%d for user %d (%d subscription + %d permanent), total %d",
		amount, userID, split.FromSubscription, split.FromPermanent, user.Balance)
	return split, nil
}

// Refund 退款。无论扣费来自哪个余额，一律退到永久金币
func (s *AccountService) Refund(userID int64, amount int, entry LedgerEntry) (*dto.BalanceInfo, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if entry.Type == "" {
		entry.Type = model.TxTypeRefund
	}
	user, err := s.mutate(userID, func(u *model.User) (int, error) {
		u.PermanentCoins += amount
		return amount, nil
	}, entry)
	if err != nil {
		return nil, err
	}
	log.Printf("Refund +%d for user %d, total %d", amount, userID, user.Balance)
	return balanceInfo(user), nil
}

// ResetSubscriptionCoins 订阅到期时清零订阅金币。
// 写一条 type=expire 的账本行，余额为零时不产生任何变更
func (s *AccountService) ResetSubscriptionCoins(userID int64, note string) (int, error) {
	removed := 0
	_, err := s.mutate(userID, func(u *model.User) (int, error) {
		removed = u.SubscriptionCoins
		if removed == 0 {
			return 0, errNoop
		}
		u.SubscriptionCoins = 0
		return -removed, nil
	}, LedgerEntry{Type: model.TxTypeExpire, Note: note})
	if err != nil {
		if errors.Is(err, errNoop) {
			return 0, nil
		}
		return 0, err
	}
	log.Printf("Expired %d subscription coins for user %d", removed, userID)
	return removed, nil
}

// SetBalance 管理员直接设置总余额。
// 订阅金币保持不变，差额落在永久金币上；目标小于订阅余额时两边都压缩
func (s *AccountService) SetBalance(userID int64, target int, note string) (*dto.BalanceInfo, error) {
	if target < 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.mutate(userID, func(u *model.User) (int, error) {
		old := u.SubscriptionCoins + u.PermanentCoins
		if target == old {
			return 0, errNoop
		}
		if target >= u.SubscriptionCoins {
			u.PermanentCoins = target - u.SubscriptionCoins
		} else {
			u.SubscriptionCoins = target
			u.PermanentCoins = 0
		}
		return target - old, nil
	}, LedgerEntry{Type: model.TxTypeAdmin, Feature: "admin_set_balance", Note: note})
	if err != nil {
		if errors.Is(err, errNoop) {
			return s.GetBalance(userID)
		}
		return nil, err
	}
	log.Printf("Admin set balance for user %d to %d", userID, target)
	return balanceInfo(user), nil
}

// GetTransactions 获取账本记录
func (s *AccountService) GetTransactions(userID int64, limit, offset int) ([]*dto.TransactionItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txs, err := s.txRepo.ListByUserID(userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TransactionItem, 0, len(txs))
	for _, tx := range txs {
		item := &dto.TransactionItem{
			ID:            tx.ID,
			Type:          tx.Type,
			CoinsDelta:    tx.CoinsDelta,
			BalanceBefore: tx.BalanceBefore,
			BalanceAfter:  tx.BalanceAfter,
			Note:          tx.Note,
			CreatedAt:     tx.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if tx.Feature != nil {
			item.Feature = *tx.Feature
		}
		items = append(items, item)
	}
	return items, nil
}

// errNoop 标记无需落库的变更
var errNoop = errors.New("no-op mutation")

// mutate 在一个事务内完成余额变更和账本写入。
// fn 直接修改 user 上的两个余额字段并返回账本增量
func (s *AccountService) mutate(userID int64, fn func(*model.User) (int, error), entry LedgerEntry) (*model.User, error) {
	var result *model.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)

		user, err := userRepo.GetByIDForUpdate(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		before := user.SubscriptionCoins + user.PermanentCoins
		delta, err := fn(user)
		if err != nil {
			return err
		}

		after := user.SubscriptionCoins + user.PermanentCoins
		if after != before+delta {
			return fmt.Errorf("balance mutation mismatch: %d -> %d, delta %d", before, after, delta)
		}

		if err := userRepo.UpdateBalances(user.ID, user.SubscriptionCoins, user.PermanentCoins); err != nil {
			return err
		}

		row := &model.Transaction{
			UserID:        user.ID,
			Type:          entry.Type,
			CoinsDelta:    delta,
			BalanceBefore: before,
			BalanceAfter:  after,
			Note:          entry.Note,
		}
		if entry.Feature != "" {
			row.Feature = &entry.Feature
		}
		if entry.PaymentID != "" {
			row.PaymentID = &entry.PaymentID
		}
		if err := txRepo.Create(row); err != nil {
			return err
		}

		user.Balance = after
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func balanceInfo(u *model.User) *dto.BalanceInfo {
	return &dto.BalanceInfo{
		SubscriptionCoins: u.SubscriptionCoins,
		PermanentCoins:    u.PermanentCoins,
		Total:             u.SubscriptionCoins + u.PermanentCoins,
	}
}
