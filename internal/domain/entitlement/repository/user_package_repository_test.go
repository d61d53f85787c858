package repository

import (
	"testing"

	"nanobanana_backend/internal/domain/entitlement/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (UserPackageRepository, *gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewUserPackageRepository(db), db, sqlMock
}

func userPackageRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "times_remaining", "status"})
	for _, id := range ids {
		rows.AddRow(id, "u1", 3, model.StatusActive)
	}
	return rows
}

func TestGetActiveByUserFiltersAndOrders(t *testing.T) {
	repo, _, sqlMock := newMockRepo(t)

	// 查询期过滤：active、剩余次数为正、未过期（expires_at 为空视为永不过期），
	// 并按到期时间升序、永不过期的排最后
	sqlMock.ExpectQuery(`SELECT \* FROM "user_packages" WHERE \(user_id = \$1 AND status = \$2 AND times_remaining > 0 AND \(expires_at IS NULL OR expires_at > NOW\(\)\).*ORDER BY expires_at ASC NULLS LAST`).
		WithArgs("u1", model.StatusActive).
		WillReturnRows(userPackageRows("up1", "up2"))

	pkgs, err := repo.GetActiveByUser("u1")

	require.NoError(t, err)
	assert.Len(t, pkgs, 2)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestGetActiveByUserForUpdateLocksRows(t *testing.T) {
	repo, db, sqlMock := newMockRepo(t)

	sqlMock.ExpectQuery(`SELECT \* FROM "user_packages" WHERE \(user_id = \$1 AND status = \$2 AND times_remaining > 0 AND \(expires_at IS NULL OR expires_at > NOW\(\)\).*ORDER BY expires_at ASC NULLS LAST FOR UPDATE`).
		WithArgs("u1", model.StatusActive).
		WillReturnRows(userPackageRows("up1"))

	pkgs, err := repo.GetActiveByUserForUpdate(db, "u1")

	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestSumAvailableTimesAppliesActiveFilter(t *testing.T) {
	repo, _, sqlMock := newMockRepo(t)

	sqlMock.ExpectQuery(`SELECT SUM\(times_remaining\) FROM "user_packages" WHERE \(user_id = \$1 AND status = \$2 AND times_remaining > 0 AND \(expires_at IS NULL OR expires_at > NOW\(\)\)`).
		WithArgs("u1", model.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(8))

	total, err := repo.SumAvailableTimes("u1")

	require.NoError(t, err)
	assert.Equal(t, 8, total)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestSumAvailableTimesZeroWhenNoRows(t *testing.T) {
	repo, _, sqlMock := newMockRepo(t)

	// 没有任何有效权益时 SUM 返回 NULL
	sqlMock.ExpectQuery(`SELECT SUM\(times_remaining\) FROM "user_packages"`).
		WithArgs("u1", model.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	total, err := repo.SumAvailableTimes("u1")

	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDeductMarksExhaustedAtZero(t *testing.T) {
	repo, _, sqlMock := newMockRepo(t)

	// 扣减与归零置 exhausted 必须在同一条 UPDATE 内完成
	sqlMock.ExpectExec(`UPDATE "user_packages" SET "status"=CASE WHEN times_remaining - \$1 <= 0 THEN 'exhausted' ELSE status END,"times_remaining"=times_remaining - \$2,"times_used"=times_used \+ \$3,"updated_at"=\$4 WHERE id = \$5`).
		WithArgs(3, 3, 3, sqlmock.AnyArg(), "up1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deduct(nil, "up1", 3)

	require.NoError(t, err)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestGetByUserOrdersByNewest(t *testing.T) {
	repo, _, sqlMock := newMockRepo(t)

	sqlMock.ExpectQuery(`SELECT \* FROM "user_packages" WHERE user_id = \$1.*ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(userPackageRows("up1"))

	pkgs, err := repo.GetByUser("u1")

	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
}
