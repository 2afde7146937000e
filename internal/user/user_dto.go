package user

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,notblank,min=3,max=100"`
	Name     string `json:"name" binding:"max=255"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

// UpdateUserRequest carries the fields to change. A nil field is left as is.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,notblank,min=3,max=100"`
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}
