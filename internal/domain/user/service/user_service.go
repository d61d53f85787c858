package service

import (
	"context"
	"errors"
	"math"
	"time"

	"nanobanana_backend/internal/domain/user/model"
	"nanobanana_backend/internal/domain/user/repository"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/pkg/config"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserExists 用户名或邮箱已注册
	ErrUserExists = errors.New("username or email already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrAuthFailed 密码错误
	ErrAuthFailed = errors.New("invalid email or password")
	// ErrAccountDisabled 账户被禁用或封禁
	ErrAccountDisabled = errors.New("account is disabled or banned")
	// ErrPasswordMismatch 两次输入的密码不一致
	ErrPasswordMismatch = errors.New("password confirmation does not match")
)

// MemberInfo 会员信息视图
type MemberInfo struct {
	IsMember        bool       `json:"is_member"`
	MemberExpiresAt *time.Time `json:"member_expires_at"`
	AvailableTimes  int        `json:"available_times"`
}

// UserService 用户服务接口
type UserService interface {
	Register(ctx context.Context, username, email, password, confirmPassword string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	GetUser(id string) (*model.User, error)
	GetBalance(userID string) (*model.Balance, error)
	GetMemberInfo(ctx context.Context, userID string) (*MemberInfo, error)

	// 以下方法供支付对账流程在其事务内调用
	CreditBalance(tx *gorm.DB, userID string, amount float64) error
	DebitBalance(tx *gorm.DB, userID string, amount float64) error
	RefundBalance(tx *gorm.DB, userID string, amount float64) error
	ExtendMembership(tx *gorm.DB, userID string, newExpiry time.Time) error
}

// userService 实现
type userService struct {
	repo        repository.UserRepository
	balanceRepo repository.BalanceRepository
	entitlement entitlementService.Service
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository, balanceRepo repository.BalanceRepository, entitlement entitlementService.Service) UserService {
	return &userService{repo: repo, balanceRepo: balanceRepo, entitlement: entitlement}
}

// Register 用户注册：创建用户与余额记录，并赠送新用户免费次数
func (s *userService) Register(ctx context.Context, username, email, password, confirmPassword string) (*model.User, string, error) {
	if password != confirmPassword {
		return nil, "", ErrPasswordMismatch
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(username, email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		Status:       model.StatusActive,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, "", err
	}

	// 创建余额记录
	if err := s.balanceRepo.Create(&model.Balance{UserID: user.ID}); err != nil {
		return nil, "", err
	}

	// 赠送免费次数，失败不阻断注册流程
	s.grantNewUserFreeCredits(ctx, user.ID)

	token, _, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", err
	}

	if err := s.repo.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return user, token, nil
}

// Login 用户登录
func (s *userService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if user.Status == model.StatusBanned || user.Status == model.StatusInactive {
		return nil, "", ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrAuthFailed
	}

	token, _, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", err
	}

	if err := s.repo.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return user, token, nil
}

// GetUser 获取单个用户
func (s *userService) GetUser(id string) (*model.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetBalance 获取用户余额
func (s *userService) GetBalance(userID string) (*model.Balance, error) {
	return s.balanceRepo.GetByUserID(userID)
}

// GetMemberInfo 获取会员信息；会员已过期时惰性降级 is_member
func (s *userService) GetMemberInfo(ctx context.Context, userID string) (*MemberInfo, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	times, err := s.entitlement.AvailableTimes(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &MemberInfo{
		IsMember:        user.IsMember,
		MemberExpiresAt: user.MemberExpiresAt,
		AvailableTimes:  times,
	}

	if info.IsMember && info.MemberExpiresAt != nil && !info.MemberExpiresAt.After(time.Now()) {
		if err := s.repo.ClearMemberStatus(userID); err != nil {
			logger.Log.Warn("failed to downgrade expired member", zap.String("user_id", userID), zap.Error(err))
		}
		info.IsMember = false
		info.MemberExpiresAt = nil
	}

	return info, nil
}

func (s *userService) CreditBalance(tx *gorm.DB, userID string, amount float64) error {
	return s.balanceRepo.Credit(tx, userID, amount)
}

func (s *userService) DebitBalance(tx *gorm.DB, userID string, amount float64) error {
	return s.balanceRepo.Debit(tx, userID, amount)
}

func (s *userService) RefundBalance(tx *gorm.DB, userID string, amount float64) error {
	return s.balanceRepo.RefundDebit(tx, userID, amount)
}

// ExtendMembership 延长会员有效期
// 若当前会员未过期，按新套餐剩余天数（向上取整）叠加到现有到期时间之后；
// 否则直接使用传入的到期时间
func (s *userService) ExtendMembership(tx *gorm.DB, userID string, newExpiry time.Time) error {
	current, err := s.repo.GetMemberExpiry(tx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	finalExpiry := newExpiry
	now := time.Now()
	if current != nil && current.After(now) {
		extraDays := int(math.Ceil(newExpiry.Sub(now).Hours() / 24))
		finalExpiry = current.AddDate(0, 0, extraDays)
	}

	return s.repo.UpdateMemberStatus(tx, userID, finalExpiry)
}

// grantNewUserFreeCredits 赠送新用户免费次数（数量与有效期来自配置）
func (s *userService) grantNewUserFreeCredits(ctx context.Context, userID string) {
	cfg := config.GlobalConfig.Credits
	if cfg.NewUserFreeCredits <= 0 {
		return
	}

	_, err := s.entitlement.Grant(ctx, entitlementService.GrantInput{
		UserID:       userID,
		Label:        "新用户免费次数",
		TimesTotal:   cfg.NewUserFreeCredits,
		Price:        0,
		ValidityDays: cfg.FreeCreditsExpiryDays,
		NeverExpires: cfg.FreeCreditsNeverExpire,
	})
	if err != nil {
		logger.Log.Error("failed to grant free credits",
			zap.String("user_id", userID),
			zap.Int("credits", cfg.NewUserFreeCredits),
			zap.Error(err),
		)
	}
}
