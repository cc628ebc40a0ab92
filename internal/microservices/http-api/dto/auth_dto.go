package dto

// Data Transfer Objects for authentication requests and responses

// SignupRequest: payload for self sign-up
type SignupRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Email    string `json:"email" binding:"required,email,max=254"`
}

// SignupResponse: echoed back after sign-up; Warning is set when the code could not be mailed
type SignupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Warning  string `json:"warning,omitempty"`
}

// TokenRequest: exchange a confirmation code for tokens. Either username or email identifies the account.
type TokenRequest struct {
	Username         string `json:"username" binding:"omitempty,max=150"`
	Email            string `json:"email" binding:"omitempty,max=254"`
	ConfirmationCode string `json:"confirmation_code" binding:"required,max=64"`
}

// RefreshTokenRequest: payload for rotating a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse: response payload after a successful exchange or refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds
}
