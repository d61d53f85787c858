package model

import (
	baseModel "nanobanana_backend/pkg/model"
)

// Balance 用户余额账本，与用户一一对应，注册时创建
// total_recharged 仅在退款时递减，total_consumed 单调递增
type Balance struct {
	baseModel.BaseModel
	UserID         string  `gorm:"uniqueIndex;not null;type:uuid" json:"userId"`
	Balance        float64 `gorm:"type:decimal(10,2);default:0" json:"balance"`
	TotalRecharged float64 `gorm:"type:decimal(10,2);default:0" json:"totalRecharged"`
	TotalConsumed  float64 `gorm:"type:decimal(10,2);default:0" json:"totalConsumed"`
}

// TableName 指定表名
func (Balance) TableName() string {
	return "user_balances"
}
