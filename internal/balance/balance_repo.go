package balance

import (
	"context"
	"database/sql"
	"time"

	"go-leave/internal/shared/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=balance_repo.go -destination=mock/balance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	FindByUserAndType(ctx context.Context, userID, leaveType string) (*LeaveBalance, error)
	FindAllByUser(ctx context.Context, userID string) ([]LeaveBalance, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	CreateMany(ctx context.Context, balances []LeaveBalance) error
	Upsert(ctx context.Context, b *LeaveBalance) error
	Deduct(ctx context.Context, userID, leaveType string, days int) (bool, error)
	Credit(ctx context.Context, userID, leaveType string, days int) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

// conn runs statements on the bound transaction when there is one.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.tx != nil {
		db.Statement.ConnPool = r.tx
	}
	return db
}

func (r *repository) FindByUserAndType(ctx context.Context, userID, leaveType string) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.conn(ctx).
		Where("user_id = ? AND leave_type = ?", userID, leaveType).
		First(&b).Error
	return &b, err
}

func (r *repository) FindAllByUser(ctx context.Context, userID string) ([]LeaveBalance, error) {
	var balances []LeaveBalance
	err := r.conn(ctx).
		Scopes(scope.ByUser(userID)).
		Order("leave_type ASC").
		Find(&balances).Error
	return balances, err
}

func (r *repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&LeaveBalance{}).
		Scopes(scope.ByUser(userID)).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateMany(ctx context.Context, balances []LeaveBalance) error {
	if len(balances) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&balances).Error
}

// Upsert writes b.Balance for (user_id, leave_type), creating the row if it
// does not exist yet.
func (r *repository) Upsert(ctx context.Context, b *LeaveBalance) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "leave_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).
		Create(b).Error
}

// Deduct subtracts days only while the row still holds at least days. The
// check and the write are one statement, so concurrent deductions on the same
// row can never take it below zero. A missing row reports false.
func (r *repository) Deduct(ctx context.Context, userID, leaveType string, days int) (bool, error) {
	res := r.conn(ctx).
		Model(&LeaveBalance{}).
		Where("user_id = ? AND leave_type = ? AND balance >= ?", userID, leaveType, days).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", days),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Credit(ctx context.Context, userID, leaveType string, days int) (bool, error) {
	res := r.conn(ctx).
		Model(&LeaveBalance{}).
		Where("user_id = ? AND leave_type = ?", userID, leaveType).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", days),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Table("users").
		Where("id = ?", userID).
		Count(&count).Error
	return count > 0, err
}
