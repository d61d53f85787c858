package service

import (
	"context"
	"testing"
	"time"

	"nanobanana_backend/internal/domain/catalog/model"
	entitlementModel "nanobanana_backend/internal/domain/entitlement/model"
	"nanobanana_backend/pkg/cache"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MockPackageRepository is a mock of PackageRepository
type MockPackageRepository struct {
	mock.Mock
}

func (m *MockPackageRepository) Create(pkg *model.Package) error {
	args := m.Called(pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) GetByID(id string) (*model.Package, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Package), args.Error(1)
}

func (m *MockPackageRepository) GetActive() ([]model.Package, error) {
	args := m.Called()
	return args.Get(0).([]model.Package), args.Error(1)
}

func (m *MockPackageRepository) ExistsByName(name string, excludeID string) (bool, error) {
	args := m.Called(name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPackageRepository) Update(pkg *model.Package) error {
	args := m.Called(pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) Delete(tx *gorm.DB, id string) error {
	args := m.Called(tx, id)
	return args.Error(0)
}

// MockUserPackageRepository is a mock of the entitlement UserPackageRepository
type MockUserPackageRepository struct {
	mock.Mock
}

func (m *MockUserPackageRepository) Create(tx *gorm.DB, up *entitlementModel.UserPackage) error {
	args := m.Called(tx, up)
	return args.Error(0)
}

func (m *MockUserPackageRepository) GetByUser(userID string) ([]entitlementModel.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]entitlementModel.UserPackage), args.Error(1)
}

func (m *MockUserPackageRepository) GetActiveByUser(userID string) ([]entitlementModel.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]entitlementModel.UserPackage), args.Error(1)
}

func (m *MockUserPackageRepository) GetActiveByUserForUpdate(tx *gorm.DB, userID string) ([]entitlementModel.UserPackage, error) {
	args := m.Called(tx, userID)
	return args.Get(0).([]entitlementModel.UserPackage), args.Error(1)
}

func (m *MockUserPackageRepository) SumAvailableTimes(userID string) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserPackageRepository) Deduct(tx *gorm.DB, id string, times int) error {
	args := m.Called(tx, id, times)
	return args.Error(0)
}

func (m *MockUserPackageRepository) ClearPackageRef(tx *gorm.DB, packageID string) error {
	args := m.Called(tx, packageID)
	return args.Error(0)
}

// MockCacheService is a mock of cache.CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

type catalogFixture struct {
	repo     *MockPackageRepository
	userPkgs *MockUserPackageRepository
	cache    *MockCacheService
	sqlMock  sqlmock.Sqlmock
	svc      PackageService
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	mockDb, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	require.NoError(t, err)

	f := &catalogFixture{
		repo:     new(MockPackageRepository),
		userPkgs: new(MockUserPackageRepository),
		cache:    new(MockCacheService),
		sqlMock:  sqlMock,
	}
	f.svc = NewPackageService(db, f.repo, f.userPkgs, f.cache)
	return f
}

func TestCreatePackageRejectsDuplicateName(t *testing.T) {
	f := newCatalogFixture(t)

	f.repo.On("ExistsByName", "标准套餐", "").Return(true, nil)

	err := f.svc.CreatePackage(context.Background(), &model.Package{Name: "标准套餐", UsageCount: 50, ValidityDays: 30, Price: 29.9})

	assert.ErrorIs(t, err, ErrPackageNameExists)
	f.repo.AssertNotCalled(t, "Create", mock.Anything)
	f.cache.AssertNotCalled(t, "InvalidatePattern", mock.Anything, mock.Anything)
}

func TestUpdatePackageAppliesPatchFields(t *testing.T) {
	f := newCatalogFixture(t)

	existing := &model.Package{Name: "标准套餐", UsageCount: 50, ValidityDays: 30, Price: 29.9, IsActive: true}
	existing.ID = "p1"

	f.repo.On("GetByID", "p1").Return(existing, nil)
	f.repo.On("Update", mock.AnythingOfType("*model.Package")).Return(nil)
	f.cache.On("InvalidatePattern", mock.Anything, "packages:*").Return(nil)

	newPrice := 39.9
	inactive := false
	pkg, err := f.svc.UpdatePackage(context.Background(), "p1", PackagePatch{Price: &newPrice, IsActive: &inactive})

	require.NoError(t, err)
	assert.Equal(t, 39.9, pkg.Price)
	assert.False(t, pkg.IsActive)
	// 未出现在 patch 里的字段保持原值
	assert.Equal(t, 50, pkg.UsageCount)
	assert.Equal(t, "标准套餐", pkg.Name)
}

func TestDeletePackagePreservesGrantedEntitlements(t *testing.T) {
	f := newCatalogFixture(t)

	existing := &model.Package{Name: "标准套餐"}
	existing.ID = "p1"
	f.repo.On("GetByID", "p1").Return(existing, nil)

	f.sqlMock.ExpectBegin()
	f.userPkgs.On("ClearPackageRef", mock.Anything, "p1").Return(nil)
	f.repo.On("Delete", mock.Anything, "p1").Return(nil)
	f.sqlMock.ExpectCommit()
	f.cache.On("InvalidatePattern", mock.Anything, "packages:*").Return(nil)

	err := f.svc.DeletePackage(context.Background(), "p1")

	require.NoError(t, err)
	f.userPkgs.AssertCalled(t, "ClearPackageRef", mock.Anything, "p1")
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestActivePackagesServedFromCache(t *testing.T) {
	f := newCatalogFixture(t)

	// 未命中时回源并写缓存
	f.cache.On("Get", mock.Anything, "packages:active", mock.Anything).Return(cache.ErrCacheMiss).Once()
	f.repo.On("GetActive").Return([]model.Package{{Name: "标准套餐"}}, nil).Once()
	f.cache.On("Set", mock.Anything, "packages:active", mock.Anything, activePackagesCacheTTL).Return(nil).Once()

	pkgs, err := f.svc.GetActivePackages(context.Background())
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)

	// 命中时不再查库
	f.cache.On("Get", mock.Anything, "packages:active", mock.Anything).Return(nil).Once()
	_, err = f.svc.GetActivePackages(context.Background())
	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "GetActive", 1)
}

func TestAdminMutationsInvalidatePackageCache(t *testing.T) {
	f := newCatalogFixture(t)

	f.repo.On("ExistsByName", "新套餐", "").Return(false, nil)
	f.repo.On("Create", mock.AnythingOfType("*model.Package")).Return(nil)
	f.cache.On("InvalidatePattern", mock.Anything, "packages:*").Return(nil)

	err := f.svc.CreatePackage(context.Background(), &model.Package{Name: "新套餐", UsageCount: 10, ValidityDays: 30, Price: 9.9})

	require.NoError(t, err)
	f.cache.AssertCalled(t, "InvalidatePattern", mock.Anything, "packages:*")
}
