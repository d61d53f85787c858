package model

import "nanobanana_backend/pkg/model"

// 生成记录状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// GenerationHistory 图像生成记录
type GenerationHistory struct {
	model.BaseModel
	UserID       string `gorm:"type:uuid;index;not null" json:"user_id"`
	Prompt       string `gorm:"type:text;not null" json:"prompt"`
	Model        string `gorm:"size:64" json:"model"`
	ImageURL     string `gorm:"type:text" json:"image_url"`
	Status       string `gorm:"size:16;default:'success';index" json:"status"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	TimesCost    int    `gorm:"default:1" json:"times_cost"`
}

func (GenerationHistory) TableName() string {
	return "generation_histories"
}
