package repository

import (
	"nanobanana_backend/internal/domain/generation/model"

	"gorm.io/gorm"
)

// HistoryRepository 生成记录存取
type HistoryRepository interface {
	Create(history *model.GenerationHistory) error
	GetByUser(userID string, offset, limit int) ([]model.GenerationHistory, int64, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(history *model.GenerationHistory) error {
	return r.db.Create(history).Error
}

// GetByUser 按时间倒序分页查询
func (r *historyRepository) GetByUser(userID string, offset, limit int) ([]model.GenerationHistory, int64, error) {
	var total int64
	if err := r.db.Model(&model.GenerationHistory{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var histories []model.GenerationHistory
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&histories).Error
	return histories, total, err
}
