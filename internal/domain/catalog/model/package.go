package model

import (
	baseModel "nanobanana_backend/pkg/model"
)

// Package 套餐目录项
type Package struct {
	baseModel.BaseModel
	Name         string  `gorm:"unique;not null" json:"name"`
	Description  string  `json:"description"`
	UsageCount   int     `gorm:"not null" json:"usageCount"` // 套餐包含的生成次数
	ValidityDays int     `gorm:"not null" json:"validityDays"`
	Price        float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive     bool    `gorm:"default:true" json:"isActive"`
	SortOrder    int     `gorm:"default:0" json:"sortOrder"`
}
