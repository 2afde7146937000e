package balance

type BalanceResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	LeaveType string `json:"leave_type"`
	Balance   int    `json:"balance"`
}

type SetBalanceRequest struct {
	Balance *int `json:"balance" binding:"required,min=0"`
}
