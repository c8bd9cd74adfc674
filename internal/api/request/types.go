package request

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username       string  `json:"username" validate:"required,max=30"`
	FullName       string  `json:"fullName" validate:"required,max=60"`
	PrivilegeLevel int     `json:"privilegeLevel" validate:"min=0,max=1"`
	Password       string  `json:"password" validate:"required,max=32,maxbytes=72"`
	Email          *string `json:"email" validate:"omitempty,email"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=30"`
	Password string `json:"password" validate:"required,max=60"`
}

// UpdateRequest is the request body for a partial profile update
type UpdateRequest struct {
	Username       *string `json:"username" validate:"omitempty,max=30"`
	FullName       *string `json:"fullName" validate:"omitempty,max=60"`
	PrivilegeLevel *int    `json:"privilegeLevel" validate:"omitempty,min=0,max=1"`
	Password       *string `json:"password" validate:"omitempty,max=32,maxbytes=72"`
	Email          *string `json:"email" validate:"omitempty,email"`
}
