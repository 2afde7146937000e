package balance

import (
	"time"

	"github.com/google/uuid"
)

// LeaveBalance holds the remaining whole days of one leave type for one user.
type LeaveBalance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balances_user_type"`
	LeaveType string    `gorm:"size:30;not null;uniqueIndex:uq_leave_balances_user_type"`
	Balance   int       `gorm:"not null;default:0;check:chk_leave_balances_non_negative,balance >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
