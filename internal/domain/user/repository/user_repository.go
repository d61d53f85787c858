package repository

import (
	"time"

	"nanobanana_backend/internal/domain/user/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义
type UserRepository interface {
	Create(user *model.User) error
	GetByID(id string) (*model.User, error)
	GetByEmail(email string) (*model.User, error)
	ExistsByUsernameOrEmail(username, email string) (bool, error)
	Update(user *model.User) error
	UpdateLastLogin(userID string) error
	GetMemberExpiry(tx *gorm.DB, userID string) (*time.Time, error)
	UpdateMemberStatus(tx *gorm.DB, userID string, expireAt time.Time) error
	ClearMemberStatus(userID string) error
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByUsernameOrEmail 检查用户名或邮箱是否已注册
func (r *userRepository) ExistsByUsernameOrEmail(username, email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// Update 更新用户
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// UpdateLastLogin 更新最后登录时间
func (r *userRepository) UpdateLastLogin(userID string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).
		Update("last_login", time.Now()).Error
}

// GetMemberExpiry 读取会员到期时间，事务内调用时传入 tx
func (r *userRepository) GetMemberExpiry(tx *gorm.DB, userID string) (*time.Time, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var user model.User
	if err := db.Select("member_expires_at").Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return user.MemberExpiresAt, nil
}

// UpdateMemberStatus 设置会员状态与到期时间
func (r *userRepository) UpdateMemberStatus(tx *gorm.DB, userID string, expireAt time.Time) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_member":         true,
		"member_expires_at": expireAt,
	}).Error
}

// ClearMemberStatus 会员过期后惰性降级
func (r *userRepository) ClearMemberStatus(userID string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).
		Update("is_member", false).Error
}
