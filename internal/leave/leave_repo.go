package leave

import (
	"context"
	"database/sql"
	"time"

	"go-leave/internal/shared/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, l *Leave) error
	FindByID(ctx context.Context, id string) (*Leave, error)
	FindByUserID(ctx context.Context, userID string) ([]Leave, error)
	FindAll(ctx context.Context, filter LeaveFilter) ([]LeaveWithUser, error)
	Transition(ctx context.Context, l *Leave, status string, decidedBy *uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, l *Leave) (bool, error)
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

func (r *repository) conn(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.tx != nil {
		db.Statement.ConnPool = r.tx
	}
	return db
}

func (r *repository) Create(ctx context.Context, l *Leave) error {
	return r.conn(ctx).Create(l).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Leave, error) {
	var l Leave
	err := r.conn(ctx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *repository) FindByUserID(ctx context.Context, userID string) ([]Leave, error) {
	var leaves []Leave
	err := r.conn(ctx).
		Scopes(scope.ByUser(userID)).
		Order("start_date DESC, id ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindAll(ctx context.Context, filter LeaveFilter) ([]LeaveWithUser, error) {
	db := r.conn(ctx).
		Table("leaves").
		Select("leaves.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = leaves.user_id")

	if filter.Search != "" {
		p := likePattern(filter.Search)
		db = db.Where(
			`(LOWER(COALESCE(users.username, '')) LIKE ? ESCAPE '\' OR LOWER(leaves.reason) LIKE ? ESCAPE '\' OR LOWER(leaves.leave_type) LIKE ? ESCAPE '\' OR LOWER(leaves.status) LIKE ? ESCAPE '\')`,
			p, p, p, p,
		)
	}
	if filter.StartDate != nil {
		db = db.Where("leaves.start_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("leaves.end_date <= ?", *filter.EndDate)
	}

	var rows []LeaveWithUser
	err := db.Order(filter.orderClause()).Scan(&rows).Error
	return rows, err
}

// Transition moves a pending leave to status only if nobody changed it since
// l was read. It reports false when the guard did not match.
func (r *repository) Transition(ctx context.Context, l *Leave, status string, decidedBy *uuid.UUID, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     status,
		"version":    gorm.Expr("version + 1"),
		"decided_at": at,
		"updated_at": at,
	}
	if decidedBy != nil {
		updates["decided_by"] = *decidedBy
	}

	res := r.conn(ctx).
		Model(&Leave{}).
		Where("id = ? AND status = ? AND version = ?", l.ID, StatusPending, l.Version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes l only while its version is unchanged.
func (r *repository) Delete(ctx context.Context, l *Leave) (bool, error) {
	res := r.conn(ctx).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Delete(&Leave{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
