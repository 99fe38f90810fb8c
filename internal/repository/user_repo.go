package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kudoai/billing_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// Ensure 按外部 ID 建档，已存在则返回现有记录
func (r *UserRepository) Ensure(id int64, username, language string) (*model.User, error) {
	user := &model.User{
		ID:       id,
		Username: username,
		Plan:     "free",
		Language: language,
	}
	err := r.db.Where("id = ?", id).FirstOrCreate(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 行级锁读取，必须在事务内调用。
// SQLite 不支持 FOR UPDATE，其事务本身就是串行的
func (r *UserRepository) GetByIDForUpdate(id int64) (*model.User, error) {
	q := r.db
	if r.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var user model.User
	err := q.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateBalances 写回双余额，balance 字段始终等于两者之和
func (r *UserRepository) UpdateBalances(id int64, subscription, permanent int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_coins": subscription,
		"permanent_coins":    permanent,
		"balance":            subscription + permanent,
	}).Error
}

func (r *UserRepository) UpdatePlan(id int64, plan string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("plan", plan).Error
}

func (r *UserRepository) UpdateLanguage(id int64, language string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("language", language).Error
}

func (r *UserRepository) SetBlocked(id int64, blocked bool) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Update("is_blocked", blocked).Error
}

func (r *UserRepository) IsBlocked(id int64) (bool, error) {
	var user model.User
	err := r.db.Select("is_blocked").Where("id = ?", id).First(&user).Error
	if err != nil {
		return false, err
	}
	return user.IsBlocked, nil
}
