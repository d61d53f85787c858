package service

import (
	"context"
	"errors"
	"time"

	"nanobanana_backend/internal/domain/catalog/model"
	"nanobanana_backend/internal/domain/catalog/repository"
	entitlementRepo "nanobanana_backend/internal/domain/entitlement/repository"
	"nanobanana_backend/pkg/cache"
	"nanobanana_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPackageNameExists 套餐名称重复
var ErrPackageNameExists = errors.New("package name already exists")

const (
	activePackagesCacheKey = "packages:active"
	packagesCachePattern   = "packages:*"
	activePackagesCacheTTL = 5 * time.Minute
)

// PackagePatch 套餐可变更字段
// 只允许列出的字段被修改，列名不由调用方输入决定
type PackagePatch struct {
	Name         *string
	Description  *string
	UsageCount   *int
	ValidityDays *int
	Price        *float64
	IsActive     *bool
	SortOrder    *int
}

// PackageService 套餐目录服务
// 在售列表走缓存，管理端的增删改按前缀批量失效
type PackageService interface {
	CreatePackage(ctx context.Context, pkg *model.Package) error
	UpdatePackage(ctx context.Context, id string, patch PackagePatch) (*model.Package, error)
	// DeletePackage 删除套餐，同时将既有权益记录的套餐引用置空（权益保留）
	DeletePackage(ctx context.Context, id string) error
	GetPackage(id string) (*model.Package, error)
	GetActivePackages(ctx context.Context) ([]model.Package, error)
}

type packageService struct {
	db       *gorm.DB
	repo     repository.PackageRepository
	userPkgs entitlementRepo.UserPackageRepository
	cache    cache.CacheService
}

// NewPackageService 创建套餐服务；cacheService 可为 nil
func NewPackageService(db *gorm.DB, repo repository.PackageRepository, userPkgs entitlementRepo.UserPackageRepository, cacheService cache.CacheService) PackageService {
	return &packageService{db: db, repo: repo, userPkgs: userPkgs, cache: cacheService}
}

func (s *packageService) CreatePackage(ctx context.Context, pkg *model.Package) error {
	exists, err := s.repo.ExistsByName(pkg.Name, "")
	if err != nil {
		return err
	}
	if exists {
		return ErrPackageNameExists
	}
	if err := s.repo.Create(pkg); err != nil {
		return err
	}
	s.invalidateCatalogCache(ctx)
	return nil
}

func (s *packageService) UpdatePackage(ctx context.Context, id string, patch PackagePatch) (*model.Package, error) {
	pkg, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && *patch.Name != pkg.Name {
		exists, err := s.repo.ExistsByName(*patch.Name, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrPackageNameExists
		}
		pkg.Name = *patch.Name
	}
	if patch.Description != nil {
		pkg.Description = *patch.Description
	}
	if patch.UsageCount != nil {
		pkg.UsageCount = *patch.UsageCount
	}
	if patch.ValidityDays != nil {
		pkg.ValidityDays = *patch.ValidityDays
	}
	if patch.Price != nil {
		pkg.Price = *patch.Price
	}
	if patch.IsActive != nil {
		pkg.IsActive = *patch.IsActive
	}
	if patch.SortOrder != nil {
		pkg.SortOrder = *patch.SortOrder
	}

	if err := s.repo.Update(pkg); err != nil {
		return nil, err
	}
	s.invalidateCatalogCache(ctx)
	return pkg, nil
}

func (s *packageService) DeletePackage(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(id); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 先断开既有权益的引用，用户已获得的次数不受影响
		if err := s.userPkgs.ClearPackageRef(tx, id); err != nil {
			return err
		}
		return s.repo.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateCatalogCache(ctx)
	return nil
}

func (s *packageService) GetPackage(id string) (*model.Package, error) {
	return s.repo.GetByID(id)
}

// GetActivePackages 在售套餐列表，带短期缓存
func (s *packageService) GetActivePackages(ctx context.Context) ([]model.Package, error) {
	if s.cache != nil {
		var cached []model.Package
		if err := s.cache.Get(ctx, activePackagesCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	pkgs, err := s.repo.GetActive()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, activePackagesCacheKey, pkgs, activePackagesCacheTTL); err != nil {
			logger.Log.Warn("failed to cache active packages", zap.Error(err))
		}
	}
	return pkgs, nil
}

func (s *packageService) invalidateCatalogCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePattern(ctx, packagesCachePattern); err != nil {
		logger.Log.Warn("failed to invalidate package cache", zap.Error(err))
	}
}
