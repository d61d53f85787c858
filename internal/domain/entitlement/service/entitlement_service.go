package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nanobanana_backend/internal/domain/entitlement/model"
	"nanobanana_backend/internal/domain/entitlement/repository"
	"nanobanana_backend/pkg/cache"
	"nanobanana_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidGrant 赠送参数非法
var ErrInvalidGrant = errors.New("grant requires a positive times total")

const (
	availableTimesCacheKey = "entitlement:times:%s"
	availableTimesCacheTTL = time.Minute
)

// GrantInput 权益发放参数
type GrantInput struct {
	UserID       string
	Label        string // 展示名称，独立于套餐目录的快照
	TimesTotal   int
	Price        float64
	ValidityDays int
	NeverExpires bool
	PackageID    *string // 为空表示不关联套餐目录
}

// Service 权益引擎
// 可用次数统计、FIFO 消耗（先消耗最早过期的）、权益发放
type Service interface {
	AvailableTimes(ctx context.Context, userID string) (int, error)
	// Consume 扣减 n 次。返回 true 表示全额扣减成功；余量不足时仍会扣掉
	// 已访问到的部分并返回 false（已扣部分不回滚）
	Consume(ctx context.Context, userID string, n int) (bool, error)
	Grant(ctx context.Context, in GrantInput) (*model.UserPackage, error)
	// GrantTx 在外部事务内发放权益，供支付对账调用；
	// 调用方在事务提交后负责调用 InvalidateCache
	GrantTx(tx *gorm.DB, in GrantInput) (*model.UserPackage, error)
	GetUserPackages(userID string) ([]model.UserPackage, error)
	// GetActiveUserPackages 仅返回仍可消耗的权益，按到期时间升序
	GetActiveUserPackages(userID string) ([]model.UserPackage, error)
	InvalidateCache(ctx context.Context, userID string)
}

type entitlementService struct {
	db    *gorm.DB
	repo  repository.UserPackageRepository
	cache cache.CacheService
}

// NewService 创建权益引擎
func NewService(db *gorm.DB, repo repository.UserPackageRepository, cacheService cache.CacheService) Service {
	return &entitlementService{db: db, repo: repo, cache: cacheService}
}

// AvailableTimes 可用次数 = 有效权益的 times_remaining 之和
// 结果短暂缓存，发放/消耗时失效
func (s *entitlementService) AvailableTimes(ctx context.Context, userID string) (int, error) {
	key := fmt.Sprintf(availableTimesCacheKey, userID)

	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	total, err := s.repo.SumAvailableTimes(userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, total, availableTimesCacheTTL); err != nil {
			logger.Log.Warn("failed to cache available times", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return total, nil
}

// Consume 按到期时间升序逐个扣减（即将过期的先用，永不过期的最后）
// 整个过程在一个事务内并对命中的权益行加锁；与参照实现一致，
// 余量不足时已扣减的部分不回滚，事务仍然提交
func (s *entitlementService) Consume(ctx context.Context, userID string, n int) (bool, error) {
	if n <= 0 {
		return true, nil
	}

	remaining := n
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		packages, err := s.repo.GetActiveByUserForUpdate(tx, userID)
		if err != nil {
			return err
		}

		for _, up := range packages {
			if remaining <= 0 {
				break
			}
			use := remaining
			if up.TimesRemaining < use {
				use = up.TimesRemaining
			}
			if err := s.repo.Deduct(tx, up.ID, use); err != nil {
				return err
			}
			remaining -= use
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.invalidateCache(ctx, userID)
	return remaining == 0, nil
}

// Grant 发放一条新的权益记录
func (s *entitlementService) Grant(ctx context.Context, in GrantInput) (*model.UserPackage, error) {
	up, err := s.GrantTx(nil, in)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, in.UserID)
	return up, nil
}

func (s *entitlementService) GrantTx(tx *gorm.DB, in GrantInput) (*model.UserPackage, error) {
	if in.TimesTotal <= 0 {
		return nil, ErrInvalidGrant
	}

	var expiresAt *time.Time
	if !in.NeverExpires {
		t := time.Now().AddDate(0, 0, in.ValidityDays)
		expiresAt = &t
	}

	up := &model.UserPackage{
		UserID:         in.UserID,
		PackageID:      in.PackageID,
		PackageName:    in.Label,
		TimesTotal:     in.TimesTotal,
		TimesUsed:      0,
		TimesRemaining: in.TimesTotal,
		Price:          in.Price,
		ExpiresAt:      expiresAt,
		Status:         model.StatusActive,
	}
	if err := s.repo.Create(tx, up); err != nil {
		return nil, err
	}
	return up, nil
}

// GetUserPackages 用户全部权益记录
func (s *entitlementService) GetUserPackages(userID string) ([]model.UserPackage, error) {
	return s.repo.GetByUser(userID)
}

func (s *entitlementService) GetActiveUserPackages(userID string) ([]model.UserPackage, error) {
	return s.repo.GetActiveByUser(userID)
}

// InvalidateCache 主动失效可用次数缓存
func (s *entitlementService) InvalidateCache(ctx context.Context, userID string) {
	s.invalidateCache(ctx, userID)
}

func (s *entitlementService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf(availableTimesCacheKey, userID)
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Log.Warn("failed to invalidate available times cache", zap.String("user_id", userID), zap.Error(err))
	}
}
