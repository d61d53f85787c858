package service

import (
	"context"
	"testing"
	"time"

	entitlementModel "nanobanana_backend/internal/domain/entitlement/model"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/user/model"
	"nanobanana_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	m.Run()
}

// MockUserRepository is a mock of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id string) (*model.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*model.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(username, email string) (bool, error) {
	args := m.Called(username, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Update(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLastLogin(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUserRepository) GetMemberExpiry(tx *gorm.DB, userID string) (*time.Time, error) {
	args := m.Called(tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockUserRepository) UpdateMemberStatus(tx *gorm.DB, userID string, expireAt time.Time) error {
	args := m.Called(tx, userID, expireAt)
	return args.Error(0)
}

func (m *MockUserRepository) ClearMemberStatus(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockBalanceRepository is a mock of BalanceRepository
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) Create(balance *model.Balance) error {
	args := m.Called(balance)
	return args.Error(0)
}

func (m *MockBalanceRepository) GetByUserID(userID string) (*model.Balance, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Balance), args.Error(1)
}

func (m *MockBalanceRepository) Credit(tx *gorm.DB, userID string, amount float64) error {
	args := m.Called(tx, userID, amount)
	return args.Error(0)
}

func (m *MockBalanceRepository) Debit(tx *gorm.DB, userID string, amount float64) error {
	args := m.Called(tx, userID, amount)
	return args.Error(0)
}

func (m *MockBalanceRepository) RefundDebit(tx *gorm.DB, userID string, amount float64) error {
	args := m.Called(tx, userID, amount)
	return args.Error(0)
}

// MockEntitlementService is a mock of the entitlement Service
type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) AvailableTimes(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockEntitlementService) Consume(ctx context.Context, userID string, n int) (bool, error) {
	args := m.Called(ctx, userID, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntitlementService) Grant(ctx context.Context, in entitlementService.GrantInput) (*entitlementModel.UserPackage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlementModel.UserPackage), args.Error(1)
}

func (m *MockEntitlementService) GrantTx(tx *gorm.DB, in entitlementService.GrantInput) (*entitlementModel.UserPackage, error) {
	args := m.Called(tx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlementModel.UserPackage), args.Error(1)
}

func (m *MockEntitlementService) GetUserPackages(userID string) ([]entitlementModel.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]entitlementModel.UserPackage), args.Error(1)
}

func (m *MockEntitlementService) GetActiveUserPackages(userID string) ([]entitlementModel.UserPackage, error) {
	args := m.Called(userID)
	return args.Get(0).([]entitlementModel.UserPackage), args.Error(1)
}

func (m *MockEntitlementService) InvalidateCache(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

func newTestService() (*MockUserRepository, *MockBalanceRepository, *MockEntitlementService, UserService) {
	userRepo := new(MockUserRepository)
	balanceRepo := new(MockBalanceRepository)
	entitlement := new(MockEntitlementService)
	return userRepo, balanceRepo, entitlement, NewUserService(userRepo, balanceRepo, entitlement)
}

func TestExtendMembershipStacksOnActiveMember(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	current := time.Now().AddDate(0, 0, 10)
	newExpiry := time.Now().AddDate(0, 0, 30)
	userRepo.On("GetMemberExpiry", mock.Anything, "u1").Return(&current, nil)

	var applied time.Time
	userRepo.On("UpdateMemberStatus", mock.Anything, "u1", mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(time.Time)
		}).
		Return(nil)

	err := svc.ExtendMembership(nil, "u1", newExpiry)

	require.NoError(t, err)
	// 未过期会员：30 天套餐叠加到现有到期时间之后，约 now+40d
	expected := current.AddDate(0, 0, 30)
	assert.WithinDuration(t, expected, applied, time.Minute)
}

func TestExtendMembershipUsesNewExpiryWhenLapsed(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	past := time.Now().AddDate(0, 0, -3)
	newExpiry := time.Now().AddDate(0, 0, 30)
	userRepo.On("GetMemberExpiry", mock.Anything, "u1").Return(&past, nil)
	userRepo.On("UpdateMemberStatus", mock.Anything, "u1", newExpiry).Return(nil)

	err := svc.ExtendMembership(nil, "u1", newExpiry)

	require.NoError(t, err)
	userRepo.AssertExpectations(t)
}

func TestExtendMembershipFirstPurchase(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	newExpiry := time.Now().AddDate(0, 0, 30)
	userRepo.On("GetMemberExpiry", mock.Anything, "u1").Return(nil, nil)
	userRepo.On("UpdateMemberStatus", mock.Anything, "u1", newExpiry).Return(nil)

	err := svc.ExtendMembership(nil, "u1", newExpiry)

	require.NoError(t, err)
	userRepo.AssertExpectations(t)
}

func TestGetMemberInfoDowngradesExpiredMember(t *testing.T) {
	userRepo, _, entitlement, svc := newTestService()

	expired := time.Now().Add(-time.Hour)
	user := &model.User{IsMember: true, MemberExpiresAt: &expired}
	user.ID = "u1"

	userRepo.On("GetByID", "u1").Return(user, nil)
	userRepo.On("ClearMemberStatus", "u1").Return(nil)
	entitlement.On("AvailableTimes", mock.Anything, "u1").Return(3, nil)

	info, err := svc.GetMemberInfo(context.Background(), "u1")

	require.NoError(t, err)
	assert.False(t, info.IsMember)
	assert.Nil(t, info.MemberExpiresAt)
	assert.Equal(t, 3, info.AvailableTimes)
	userRepo.AssertCalled(t, "ClearMemberStatus", "u1")
}

func TestGetMemberInfoActiveMember(t *testing.T) {
	userRepo, _, entitlement, svc := newTestService()

	future := time.Now().Add(24 * time.Hour)
	user := &model.User{IsMember: true, MemberExpiresAt: &future}
	user.ID = "u1"

	userRepo.On("GetByID", "u1").Return(user, nil)
	entitlement.On("AvailableTimes", mock.Anything, "u1").Return(10, nil)

	info, err := svc.GetMemberInfo(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, info.IsMember)
	require.NotNil(t, info.MemberExpiresAt)
	userRepo.AssertNotCalled(t, "ClearMemberStatus", mock.Anything)
}

func TestRegisterPasswordMismatch(t *testing.T) {
	_, _, _, svc := newTestService()

	_, _, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123", "secret124")

	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestRegisterDuplicateUser(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	userRepo.On("ExistsByUsernameOrEmail", "alice", "alice@example.com").Return(true, nil)

	_, _, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123", "secret123")

	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &model.User{Email: "alice@example.com", PasswordHash: string(hash), Status: model.StatusActive}
	userRepo.On("GetByEmail", "alice@example.com").Return(user, nil)

	_, _, err = svc.Login(context.Background(), "alice@example.com", "wrong-password")

	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestLoginBannedAccount(t *testing.T) {
	userRepo, _, _, svc := newTestService()

	user := &model.User{Email: "alice@example.com", Status: model.StatusBanned}
	userRepo.On("GetByEmail", "alice@example.com").Return(user, nil)

	_, _, err := svc.Login(context.Background(), "alice@example.com", "whatever")

	assert.ErrorIs(t, err, ErrAccountDisabled)
}
