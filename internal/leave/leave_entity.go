package leave

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

const dateLayout = "2006-01-02"

// Leave is a request for whole days off. Version increases on every
// transition and guards concurrent decisions.
type Leave struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_user_dates"`
	LeaveType string    `gorm:"size:30;not null"`
	StartDate time.Time `gorm:"type:date;not null;index:idx_leaves_user_dates"`
	EndDate   time.Time `gorm:"type:date;not null;index:idx_leaves_user_dates"`
	TotalDays int       `gorm:"not null;default:1"`
	Reason    string    `gorm:"type:text"`

	Status    string     `gorm:"size:20;not null;default:'PENDING';index:idx_leaves_status"`
	Version   int        `gorm:"not null;default:1"`
	DecidedBy *uuid.UUID `gorm:"type:uuid"`
	DecidedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveWithUser is a Leave joined with its owner's username.
type LeaveWithUser struct {
	Leave    `gorm:"embedded"`
	Username string
}

// inclusiveDays counts calendar days from start to end, both included.
func inclusiveDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
