package auth

type SignInRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type SignInResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresAt   string   `json:"expires_at"`
	User        AuthUser `json:"user"`
}
