package response

import "github.com/mcoot/accountsvc/internal/model"

// Data is the envelope for every successful response
type Data[T any] struct {
	Data T `json:"data"`
}

// Profile is the public view of an account
type Profile struct {
	Username       string  `json:"username"`
	FullName       string  `json:"fullName"`
	PrivilegeLevel int     `json:"privilegeLevel"`
	Email          *string `json:"email"`
}

// ProfileFromModel converts a model.Profile to a response Profile
func ProfileFromModel(p *model.Profile) Profile {
	return Profile{
		Username:       p.Username,
		FullName:       p.FullName,
		PrivilegeLevel: p.PrivilegeLevel,
		Email:          p.Email,
	}
}

// Token is the body of a successful login
type Token struct {
	Token string `json:"token"`
}

// Status is the body of the health and readiness probes
type Status struct {
	Status string `json:"status"`
}
