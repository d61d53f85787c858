package repository

import (
	"errors"

	"nanobanana_backend/internal/domain/user/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrBalanceNotFound 余额记录不存在
	ErrBalanceNotFound = errors.New("balance record not found")
	// ErrInsufficientBalance 余额不足，条件更新未命中
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// BalanceRepository 余额账本仓库
type BalanceRepository interface {
	Create(balance *model.Balance) error
	GetByUserID(userID string) (*model.Balance, error)
	// Credit 入账：balance 与 total_recharged 同步增加，记录不存在时插入
	Credit(tx *gorm.DB, userID string, amount float64) error
	// Debit 出账：条件更新，余额不足时返回 ErrInsufficientBalance
	Debit(tx *gorm.DB, userID string, amount float64) error
	// RefundDebit 退款扣减：balance 与 total_recharged 同时减少，允许为负
	RefundDebit(tx *gorm.DB, userID string, amount float64) error
}

type balanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建余额仓库
func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) Create(balance *model.Balance) error {
	return r.db.Create(balance).Error
}

func (r *balanceRepository) GetByUserID(userID string) (*model.Balance, error) {
	var balance model.Balance
	if err := r.db.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

func (r *balanceRepository) Credit(tx *gorm.DB, userID string, amount float64) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	// upsert：并发回调下同一用户的入账靠行级锁串行化
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":         gorm.Expr("user_balances.balance + ?", amount),
			"total_recharged": gorm.Expr("user_balances.total_recharged + ?", amount),
		}),
	}).Create(&model.Balance{
		UserID:         userID,
		Balance:        amount,
		TotalRecharged: amount,
	}).Error
}

func (r *balanceRepository) Debit(tx *gorm.DB, userID string, amount float64) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.Model(&model.Balance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance - ?", amount),
			"total_consumed": gorm.Expr("total_consumed + ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&model.Balance{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrBalanceNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (r *balanceRepository) RefundDebit(tx *gorm.DB, userID string, amount float64) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.Model(&model.Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance - ?", amount),
			"total_recharged": gorm.Expr("total_recharged - ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}
