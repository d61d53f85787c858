package service

import (
	"context"
	"testing"
	"time"

	"nanobanana_backend/internal/domain/entitlement/model"
	"nanobanana_backend/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	m.Run()
}

// MockUserPackageRepository is a mock of UserPackageRepository
type MockUserPackageRepository struct {
	mock.Mock
}

func (m *MockUserPackageRepository) Create(tx *gorm.DB, up *model.UserPackage) error {
	args := m.Called(tx, up)
	return args.Error(0)
}

func (m *MockUserPackageRepository) GetByUser(userID string) ([]model.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]model.UserPackage), args.Error(1)
}

func (m *MockUserPackageRepository) GetActiveByUser(userID string) ([]model.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]model.UserPackage), args.Error(1)
}

func (m *MockUserPackageRepository) GetActiveByUserForUpdate(tx *gorm.DB, userID string) ([]model.UserPackage, error) {
	args := m.Called(tx, userID)
	return args.Get(0).([]model.UserPackage), args.Error(1)
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

// newTestDB 基于 sqlmock 的 gorm 连接，仅用于覆盖事务边界
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	require.NoError(t, err)
	return db, sqlMock
}

func expiry(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestConsumeDeductsEarliestExpiryFirst(t *testing.T) {
	db, sqlMock := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	packages := []model.UserPackage{
		{UserID: "u1", TimesRemaining: 3, ExpiresAt: expiry(24 * time.Hour)},
		{UserID: "u1", TimesRemaining: 5, ExpiresAt: expiry(48 * time.Hour)},
	}
	packages[0].ID = "pkg-early"
	packages[1].ID = "pkg-late"

	sqlMock.ExpectBegin()
	repo.On("GetActiveByUserForUpdate", mock.Anything, "u1").Return(packages, nil)
	// 先耗尽最早过期的，再从下一条补足
	repo.On("Deduct", mock.Anything, "pkg-early", 3).Return(nil)
	repo.On("Deduct", mock.Anything, "pkg-late", 1).Return(nil)
	sqlMock.ExpectCommit()

	fully, err := svc.Consume(context.Background(), "u1", 4)

	assert.NoError(t, err)
	assert.True(t, fully)
	repo.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestConsumePartialDeductionIsKept(t *testing.T) {
	db, sqlMock := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	packages := []model.UserPackage{
		{UserID: "u1", TimesRemaining: 2, ExpiresAt: expiry(24 * time.Hour)},
	}
	packages[0].ID = "pkg-1"

	sqlMock.ExpectBegin()
	repo.On("GetActiveByUserForUpdate", mock.Anything, "u1").Return(packages, nil)
	repo.On("Deduct", mock.Anything, "pkg-1", 2).Return(nil)
	// 余量不足也提交，已扣部分不回滚
	sqlMock.ExpectCommit()

	fully, err := svc.Consume(context.Background(), "u1", 5)

	assert.NoError(t, err)
	assert.False(t, fully)
	repo.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestConsumeZeroIsNoop(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	fully, err := svc.Consume(context.Background(), "u1", 0)

	assert.NoError(t, err)
	assert.True(t, fully)
	repo.AssertNotCalled(t, "GetActiveByUserForUpdate", mock.Anything, mock.Anything)
}

func TestConsumeSkipsRemainingAfterShortage(t *testing.T) {
	db, sqlMock := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	// 空列表：没有可扣的权益
	sqlMock.ExpectBegin()
	repo.On("GetActiveByUserForUpdate", mock.Anything, "u1").Return([]model.UserPackage{}, nil)
	sqlMock.ExpectCommit()

	fully, err := svc.Consume(context.Background(), "u1", 1)

	assert.NoError(t, err)
	assert.False(t, fully)
	repo.AssertNotCalled(t, "Deduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestGrantComputesExpiry(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	var created *model.UserPackage
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.UserPackage")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*model.UserPackage)
		}).
		Return(nil)

	up, err := svc.Grant(context.Background(), GrantInput{
		UserID:       "u1",
		Label:        "标准套餐",
		TimesTotal:   50,
		Price:        29.9,
		ValidityDays: 30,
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 50, up.TimesTotal)
	assert.Equal(t, 50, up.TimesRemaining)
	assert.Equal(t, 0, up.TimesUsed)
	assert.Equal(t, model.StatusActive, up.Status)
	require.NotNil(t, up.ExpiresAt)
	expected := time.Now().AddDate(0, 0, 30)
	assert.WithinDuration(t, expected, *up.ExpiresAt, time.Minute)
}

func TestGrantNeverExpires(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.UserPackage")).Return(nil)

	up, err := svc.Grant(context.Background(), GrantInput{
		UserID:       "u1",
		Label:        "新用户免费次数",
		TimesTotal:   5,
		NeverExpires: true,
	})

	require.NoError(t, err)
	assert.Nil(t, up.ExpiresAt)
}

func TestGrantRejectsNonPositiveTimes(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	_, err := svc.Grant(context.Background(), GrantInput{UserID: "u1", TimesTotal: 0})

	assert.ErrorIs(t, err, ErrInvalidGrant)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAvailableTimesSumsActivePackages(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	repo.On("SumAvailableTimes", "u1").Return(7, nil)

	total, err := svc.AvailableTimes(context.Background(), "u1")

	assert.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestGetActiveUserPackagesUsesActiveQuery(t *testing.T) {
	db, _ := newTestDB(t)
	repo := new(MockUserPackageRepository)
	svc := NewService(db, repo, nil)

	active := []model.UserPackage{{UserID: "u1", TimesRemaining: 3, Status: model.StatusActive}}
	repo.On("GetActiveByUser", "u1").Return(active, nil)

	pkgs, err := svc.GetActiveUserPackages("u1")

	assert.NoError(t, err)
	assert.Equal(t, active, pkgs)
	repo.AssertNotCalled(t, "GetByUser", mock.Anything)
}
