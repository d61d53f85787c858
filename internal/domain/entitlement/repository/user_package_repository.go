package repository

import (
	"nanobanana_backend/internal/domain/entitlement/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeFilter 有效权益的查询条件：active 状态、剩余次数大于 0、未过期
// expires_at 为空视为永不过期
const activeFilter = "user_id = ? AND status = ? AND times_remaining > 0 AND (expires_at IS NULL OR expires_at > NOW())"

// UserPackageRepository 权益记录仓库
type UserPackageRepository interface {
	Create(tx *gorm.DB, up *model.UserPackage) error
	GetByUser(userID string) ([]model.UserPackage, error)
	// GetActiveByUser 返回有效权益，按到期时间升序（永不过期的排最后）
	GetActiveByUser(userID string) ([]model.UserPackage, error)
	// GetActiveByUserForUpdate 同上，但加行级锁，必须在事务内调用
	GetActiveByUserForUpdate(tx *gorm.DB, userID string) ([]model.UserPackage, error)
	SumAvailableTimes(userID string) (int, error)
	// Deduct 扣减次数并在归零时置为 exhausted
	Deduct(tx *gorm.DB, id string, times int) error
	// ClearPackageRef 套餐目录删除时断开引用，权益保留
	ClearPackageRef(tx *gorm.DB, packageID string) error
}

type userPackageRepository struct {
	db *gorm.DB
}

// NewUserPackageRepository 创建权益仓库
func NewUserPackageRepository(db *gorm.DB) UserPackageRepository {
	return &userPackageRepository{db: db}
}

func (r *userPackageRepository) Create(tx *gorm.DB, up *model.UserPackage) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Create(up).Error
}

func (r *userPackageRepository) GetByUser(userID string) ([]model.UserPackage, error) {
	var packages []model.UserPackage
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&packages).Error
	return packages, err
}

func (r *userPackageRepository) GetActiveByUser(userID string) ([]model.UserPackage, error) {
	var packages []model.UserPackage
	err := r.db.Where(activeFilter, userID, model.StatusActive).
		Order("expires_at ASC NULLS LAST").
		Find(&packages).Error
	return packages, err
}

func (r *userPackageRepository) GetActiveByUserForUpdate(tx *gorm.DB, userID string) ([]model.UserPackage, error) {
	var packages []model.UserPackage
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(activeFilter, userID, model.StatusActive).
		Order("expires_at ASC NULLS LAST").
		Find(&packages).Error
	return packages, err
}

func (r *userPackageRepository) SumAvailableTimes(userID string) (int, error) {
	var total *int
	err := r.db.Model(&model.UserPackage{}).
		Select("SUM(times_remaining)").
		Where(activeFilter, userID, model.StatusActive).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *userPackageRepository) Deduct(tx *gorm.DB, id string, times int) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Model(&model.UserPackage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"times_used":      gorm.Expr("times_used + ?", times),
			"times_remaining": gorm.Expr("times_remaining - ?", times),
			"status":          gorm.Expr("CASE WHEN times_remaining - ? <= 0 THEN 'exhausted' ELSE status END", times),
		}).Error
}

func (r *userPackageRepository) ClearPackageRef(tx *gorm.DB, packageID string) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Model(&model.UserPackage{}).
		Where("package_id = ?", packageID).
		Update("package_id", nil).Error
}
