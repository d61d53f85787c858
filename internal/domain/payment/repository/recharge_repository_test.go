package repository

import (
	"testing"

	"nanobanana_backend/internal/domain/payment/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (RechargeRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewRechargeRepository(db), sqlMock
}

func TestBindTransactionGuardsPendingStatus(t *testing.T) {
	repo, sqlMock := newMockRepo(t)

	// 只允许给 pending 记录绑定商户订单号
	sqlMock.ExpectExec(`UPDATE "recharge_records" SET .+ WHERE \(id = .+ AND status = .+`).
		WithArgs(model.MethodWxpay, "EP123", sqlmock.AnyArg(), "r1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.BindTransaction(nil, "r1", "EP123", model.MethodWxpay)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestBindTransactionMissesWhenNotPending(t *testing.T) {
	repo, sqlMock := newMockRepo(t)

	sqlMock.ExpectExec(`UPDATE "recharge_records" SET .+ WHERE \(id = .+ AND status = .+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.BindTransaction(nil, "r1", "EP123", model.MethodWxpay)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCompletedGuardsPendingStatus(t *testing.T) {
	repo, sqlMock := newMockRepo(t)

	// 条件更新必须带上 status = pending 的守卫
	sqlMock.ExpectExec(`UPDATE "recharge_records" SET .+ WHERE \(id = .+ AND status = .+`).
		WithArgs("TN123", model.StatusCompleted, sqlmock.AnyArg(), "r1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ext := "TN123"
	ok, err := repo.MarkCompleted(nil, "r1", &ext)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestMarkCompletedMissesWhenNotPending(t *testing.T) {
	repo, sqlMock := newMockRepo(t)

	sqlMock.ExpectExec(`UPDATE "recharge_records" SET .+ WHERE \(id = .+ AND status = .+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkCompleted(nil, "r1", nil)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkRefundedGuardsCompletedStatus(t *testing.T) {
	repo, sqlMock := newMockRepo(t)

	sqlMock.ExpectExec(`UPDATE "recharge_records" SET .+ WHERE \(id = .+ AND status = .+`).
		WithArgs("用户申请", model.StatusRefunded, sqlmock.AnyArg(), "r1", model.StatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkRefunded(nil, "r1", "用户申请")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
