package leave

type SubmitLeaveRequest struct {
	LeaveType string `json:"leave_type" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason"`
}

type DecideLeaveRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

type LeaveResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	LeaveType string  `json:"leave_type"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	TotalDays int     `json:"total_days"`
	Reason    string  `json:"reason"`
	Status    string  `json:"status"`
	Version   int     `json:"version"`
	DecidedBy *string `json:"decided_by,omitempty"`
	DecidedAt *string `json:"decided_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// LeaveListItem is one row of the administrative listing.
type LeaveListItem struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	LeaveType string `json:"leave_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
}

type CancelLeaveResponse struct {
	ID             string `json:"id"`
	Cancelled      bool   `json:"cancelled"`
	ReleasedDays   int    `json:"released_days"`
	PreviousStatus string `json:"previous_status"`
}
