package repository

import (
	"errors"

	"nanobanana_backend/internal/domain/payment/model"

	"gorm.io/gorm"
)

// ErrRecordNotFound 充值记录不存在
var ErrRecordNotFound = errors.New("recharge record not found")

// RechargeRepository 充值记录仓库
// 状态迁移使用条件更新（WHERE 限定当前状态），通过受影响行数判断是否真正
// 发生迁移，保证重复回调下的幂等入账
type RechargeRepository interface {
	Create(tx *gorm.DB, record *model.RechargeRecord) error
	GetByID(id string) (*model.RechargeRecord, error)
	GetByTransactionID(transactionID string) (*model.RechargeRecord, error)
	// BindTransaction 将商户订单号与支付方式绑定到 pending 记录，返回是否命中；
	// 回调按 transaction_id 定位记录，复用已有记录下单时必须先绑定
	BindTransaction(tx *gorm.DB, id, transactionID, paymentMethod string) (bool, error)
	// MarkCompleted pending → completed，返回是否命中
	MarkCompleted(tx *gorm.DB, id string, externalTradeNo *string) (bool, error)
	// MarkFailed pending → failed，返回是否命中
	MarkFailed(tx *gorm.DB, id string) (bool, error)
	// MarkRefunded completed → refunded，返回是否命中
	MarkRefunded(tx *gorm.DB, id string, reason string) (bool, error)
}

type rechargeRepository struct {
	db *gorm.DB
}

// NewRechargeRepository 创建充值记录仓库
func NewRechargeRepository(db *gorm.DB) RechargeRepository {
	return &rechargeRepository{db: db}
}

func (r *rechargeRepository) Create(tx *gorm.DB, record *model.RechargeRecord) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Create(record).Error
}

func (r *rechargeRepository) GetByID(id string) (*model.RechargeRecord, error) {
	var record model.RechargeRecord
	if err := r.db.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *rechargeRepository) GetByTransactionID(transactionID string) (*model.RechargeRecord, error) {
	var record model.RechargeRecord
	if err := r.db.Where("transaction_id = ?", transactionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *rechargeRepository) BindTransaction(tx *gorm.DB, id, transactionID, paymentMethod string) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.Model(&model.RechargeRecord{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"transaction_id": transactionID,
			"payment_method": paymentMethod,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *rechargeRepository) MarkCompleted(tx *gorm.DB, id string, externalTradeNo *string) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	updates := map[string]interface{}{"status": model.StatusCompleted}
	if externalTradeNo != nil {
		updates["external_trade_no"] = *externalTradeNo
	}
	result := db.Model(&model.RechargeRecord{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *rechargeRepository) MarkFailed(tx *gorm.DB, id string) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.Model(&model.RechargeRecord{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("status", model.StatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *rechargeRepository) MarkRefunded(tx *gorm.DB, id string, reason string) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.Model(&model.RechargeRecord{}).
		Where("id = ? AND status = ?", id, model.StatusCompleted).
		Updates(map[string]interface{}{
			"status":        model.StatusRefunded,
			"refund_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
