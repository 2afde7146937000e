package user

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

//go:generate mockgen -source=user_repo.go -destination=mock/user_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindAll(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) (bool, error)
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

func (r *repository) Create(ctx context.Context, u *User) error {
	return r.conn(ctx).Create(u).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.conn(ctx).First(&u, "id = ?", id).Error
	return &u, err
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.conn(ctx).First(&u, "username = ?", username).Error
	return &u, err
}

func (r *repository) FindAll(ctx context.Context) ([]User, error) {
	var users []User
	err := r.conn(ctx).Order("username ASC").Find(&users).Error
	return users, err
}

// Update writes every mutable column of u, including empty strings.
func (r *repository) Update(ctx context.Context, u *User) error {
	res := r.conn(ctx).Model(&User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"username":      u.Username,
		"name":          u.Name,
		"email":         u.Email,
		"role":          u.Role,
		"password_hash": u.PasswordHash,
		"updated_at":    u.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.conn(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
