package model

import (
	"time"

	baseModel "nanobanana_backend/pkg/model"
)

// UserPackage 用户权益记录（购买的套餐、注册赠送、管理员赠送）
// package_id 可为空：空表示不关联任何套餐目录项；套餐目录删除时该引用被置空，
// 权益本身保留。package_name 是购买时的名称快照。
// 过期是查询期条件（expires_at 与当前时间比较），不依赖后台任务改写 status。
type UserPackage struct {
	baseModel.BaseModel
	UserID         string     `gorm:"index;not null;type:uuid" json:"userId"`
	PackageID      *string    `gorm:"type:uuid" json:"packageId"`
	PackageName    string     `gorm:"not null" json:"packageName"`
	TimesTotal     int        `gorm:"not null" json:"timesTotal"`
	TimesUsed      int        `gorm:"default:0" json:"timesUsed"`
	TimesRemaining int        `gorm:"not null" json:"timesRemaining"`
	Price          float64    `gorm:"type:decimal(10,2);default:0" json:"price"`
	ExpiresAt      *time.Time `json:"expiresAt"` // null 表示永不过期
	Status         string     `gorm:"default:'active'" json:"status"` // active, expired, exhausted
}

// TableName 指定表名
func (UserPackage) TableName() string {
	return "user_packages"
}

const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusExhausted = "exhausted"
)
