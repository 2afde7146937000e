package events

import "time"

const LeaveLifecycleTopic = "leave.lifecycle.v1"

const (
	LeaveSubmitted = "leave_submitted"
	LeaveApproved  = "leave_approved"
	LeaveRejected  = "leave_rejected"
	LeaveCancelled = "leave_cancelled"
)

// LeaveLifecycleEvent carries everything a notification needs so that the
// consumer never has to read the leave back (it may already be deleted).
type LeaveLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	LeaveID    string    `json:"leave_id"`
	UserID     string    `json:"user_id"`
	LeaveType  string    `json:"leave_type"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	TotalDays  int       `json:"total_days"`
	Reason     string    `json:"reason,omitempty"`
	DecidedBy  string    `json:"decided_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
