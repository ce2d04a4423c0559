package dto

// LoginRequest authenticates an account by email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ProvisionRequest creates an account plus its profile document.
type ProvisionRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"fullName" validate:"required"`
	Role        string `json:"role" validate:"required"`
	Faculty     string `json:"faculty" validate:"required"`
	Department  string `json:"department"`
	DegreeLevel string `json:"degreeLevel"`
}
