package balance

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	balanceerrors "go-leave/internal/balance/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID string `gorm:"type:uuid;primaryKey"`
}

func (userRow) TableName() string { return "users" }

func setupBalanceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userRow{}, &LeaveBalance{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedBalance(t *testing.T, db *gorm.DB, userID uuid.UUID, leaveType string, days int) {
	t.Helper()
	require.NoError(t, db.Create(&userRow{ID: userID.String()}).Error)
	require.NoError(t, db.Create(&LeaveBalance{ID: uuid.New(), UserID: userID, LeaveType: leaveType, Balance: days}).Error)
}

func TestRepository_DeductIsConditional(t *testing.T) {
	db := setupBalanceDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	seedBalance(t, db, userID, "CASUAL", 5)

	ok, err := repo.Deduct(ctx, userID.String(), "CASUAL", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Deduct(ctx, userID.String(), "CASUAL", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Deduct(ctx, userID.String(), "SICK", 1)
	require.NoError(t, err)
	assert.False(t, ok, "missing row counts as no entitlement")

	b, err := repo.FindByUserAndType(ctx, userID.String(), "CASUAL")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Balance)

	ok, err = repo.Credit(ctx, userID.String(), "CASUAL", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err = repo.FindByUserAndType(ctx, userID.String(), "CASUAL")
	require.NoError(t, err)
	assert.Equal(t, 5, b.Balance)
}

func TestRepository_UpsertAndCount(t *testing.T) {
	db := setupBalanceDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, db.Create(&userRow{ID: userID.String()}).Error)

	exists, err := repo.UserExists(ctx, userID.String())
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Upsert(ctx, &LeaveBalance{UserID: userID, LeaveType: "SICK", Balance: 4}))
	require.NoError(t, repo.Upsert(ctx, &LeaveBalance{UserID: userID, LeaveType: "SICK", Balance: 9}))

	count, err := repo.CountByUser(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	b, err := repo.FindByUserAndType(ctx, userID.String(), "SICK")
	require.NoError(t, err)
	assert.Equal(t, 9, b.Balance)

	err = repo.CreateMany(ctx, []LeaveBalance{{ID: uuid.New(), UserID: userID, LeaveType: "SICK", Balance: 1}})
	assert.Error(t, err, "one row per user and type")
}

func TestRepository_WithTxRollsBack(t *testing.T) {
	db := setupBalanceDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	seedBalance(t, db, userID, "ANNUAL", 10)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	tx, err := sqlDB.BeginTx(ctx, nil)
	require.NoError(t, err)

	ok, err := repo.WithTx(tx).Deduct(ctx, userID.String(), "ANNUAL", 4)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tx.Rollback())

	b, err := repo.FindByUserAndType(ctx, userID.String(), "ANNUAL")
	require.NoError(t, err)
	assert.Equal(t, 10, b.Balance)
}

func TestLedger_ConcurrentReservesNeverOverdraw(t *testing.T) {
	db := setupBalanceDB(t)
	ledger := NewLedger(NewRepository(db))
	ctx := context.Background()
	userID := uuid.New()
	const initial, days, attempts = 10, 3, 12
	seedBalance(t, db, userID, "CASUAL", initial)

	var granted, refused int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := ledger.Reserve(ctx, userID.String(), "CASUAL", days)
			switch {
			case err == nil:
				atomic.AddInt32(&granted, 1)
			case assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance):
				atomic.AddInt32(&refused, 1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	available, err := ledger.Available(ctx, userID.String(), "CASUAL")
	require.NoError(t, err)
	assert.Equal(t, int32(initial/days), granted)
	assert.Equal(t, int32(attempts-initial/days), refused)
	assert.Equal(t, initial-int(granted)*days, available)
	assert.GreaterOrEqual(t, available, 0)
}

func TestLedger_Guards(t *testing.T) {
	db := setupBalanceDB(t)
	ledger := NewLedger(NewRepository(db))
	ctx := context.Background()
	userID := uuid.New().String()

	assert.ErrorIs(t, ledger.Reserve(ctx, userID, "CASUAL", 0), balanceerrors.ErrInvalidDays)
	assert.ErrorIs(t, ledger.Release(ctx, userID, "CASUAL", -2), balanceerrors.ErrInvalidDays)
	assert.ErrorIs(t, ledger.Release(ctx, userID, "CASUAL", 2), balanceerrors.ErrBalanceNotFound)

	available, err := ledger.Available(ctx, userID, "CASUAL")
	assert.NoError(t, err)
	assert.Equal(t, 0, available)
}
