package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) Create(tx *model.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *TransactionRepository) GetByID(id int64) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.Where("id = ?", id).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) GetByPaymentID(paymentID string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.Where("payment_id = ?", paymentID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ExistsByPaymentID 检查支付 ID 是否已入账（webhook 幂等判断）
func (r *TransactionRepository) ExistsByPaymentID(paymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Transaction{}).Where("payment_id = ?", paymentID).Count(&count).Error
	return count > 0, err
}

func (r *TransactionRepository) ListByUserID(userID int64, limit, offset int) ([]*model.Transaction, error) {
	var txs []*model.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

// SpendingStats 周期内的消费汇总
type SpendingStats struct {
	TotalSpent    int
	TotalReceived int
	SpendCount    int
	ReceiveCount  int
}

// FeatureStat 按功能的消费汇总
type FeatureStat struct {
	Feature    string
	UsageCount int
	TotalCoins int
}

func (r *TransactionRepository) GetSpendingStats(userID int64, since time.Time) (*SpendingStats, error) {
	var stats SpendingStats
	err := r.db.Model(&model.Transaction{}).
		Select(
			"COALESCE(SUM(CASE WHEN coins_delta < 0 THEN -coins_delta ELSE 0 END), 0) AS total_spent, "+
				"COALESCE(SUM(CASE WHEN coins_delta > 0 THEN coins_delta ELSE 0 END), 0) AS total_received, "+
				"COALESCE(SUM(CASE WHEN coins_delta < 0 THEN 1 ELSE 0 END), 0) AS spend_count, "+
				"COALESCE(SUM(CASE WHEN coins_delta > 0 THEN 1 ELSE 0 END), 0) AS receive_count",
		).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *TransactionRepository) GetFeatureStats(userID int64, since time.Time) ([]*FeatureStat, error) {
	var stats []*FeatureStat
	err := r.db.Model(&model.Transaction{}).
		Select("feature, COUNT(*) AS usage_count, SUM(-coins_delta) AS total_coins").
		Where("user_id = ? AND created_at >= ? AND feature IS NOT NULL AND coins_delta < 0", userID, since).
		Group("feature").
		Order("total_coins DESC").
		Scan(&stats).Error
	return stats, err
}
