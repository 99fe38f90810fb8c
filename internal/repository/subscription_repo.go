package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) Create(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveByUserID 获取用户当前有效订阅（未过期的最晚一个）
func (r *SubscriptionRepository) GetActiveByUserID(userID int64, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, now).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CountOtherActive 统计用户除指定订阅外仍有效的订阅数
func (r *SubscriptionRepository) CountOtherActive(userID, excludeID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Subscription{}).
		Where("user_id = ? AND id <> ? AND is_active = ? AND end_date > ?", userID, excludeID, true, now).
		Count(&count).Error
	return count, err
}

func (r *SubscriptionRepository) ListByUserID(userID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// ListExpired 获取已到期但仍处于激活状态的订阅
func (r *SubscriptionRepository) ListExpired(now time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Where("is_active = ? AND end_date <= ?", true, now).
		Order("end_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ListExpiringSoon 获取即将到期且尚未预警过的订阅
func (r *SubscriptionRepository) ListExpiringSoon(now, until time.Time) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.Where("is_active = ? AND end_date > ? AND end_date <= ? AND warned_at IS NULL", true, now, until).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) Deactivate(id int64) error {
	return r.db.Model(&model.Subscription{}).Where("id = ?", id).Update("is_active", false).Error
}

// MarkWarned 记录到期预警已发送
func (r *SubscriptionRepository) MarkWarned(id int64, at time.Time) error {
	return r.db.Model(&model.Subscription{}).Where("id = ?", id).Update("warned_at", at).Error
}
