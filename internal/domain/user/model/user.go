package model

import (
	"time"

	baseModel "nanobanana_backend/pkg/model"
)

// User 用户模型
type User struct {
	baseModel.BaseModel
	Username        string     `gorm:"unique;not null" json:"username"`
	Email           string     `gorm:"unique;not null" json:"email"`
	PasswordHash    string     `gorm:"not null" json:"-"` // 密码哈希不返回给前端
	Avatar          string     `json:"avatar"`
	Role            string     `gorm:"default:'user'" json:"role"`     // user, admin
	Status          string     `gorm:"default:'active'" json:"status"` // active, inactive, banned
	IsMember        bool       `gorm:"default:false" json:"isMember"`
	MemberExpiresAt *time.Time `json:"memberExpiresAt,omitempty"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBanned   = "banned"
)
