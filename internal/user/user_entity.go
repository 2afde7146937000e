package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username     string    `gorm:"column:username;size:100;not null;uniqueIndex:uq_users_username"`
	Name         string    `gorm:"column:name;size:255"`
	Email        string    `gorm:"column:email;size:255"`
	Role         string    `gorm:"column:role;size:20;not null;default:EMPLOYEE"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
