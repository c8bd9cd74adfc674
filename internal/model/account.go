package model

import "time"

// AccountID uniquely identifies an account independently of its username
type AccountID string

// Account is the persisted identity record
type Account struct {
	ID             AccountID `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	PrivilegeLevel int       `json:"privilege_level"`
	PasswordHash   string    `json:"password_hash"`
	Email          *string   `json:"email,omitempty"`
	SessionToken   *string   `json:"session_token,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasSession reports whether the account currently holds a live token
func (a *Account) HasSession() bool {
	return a.SessionToken != nil && *a.SessionToken != ""
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	c := *a
	if a.Email != nil {
		email := *a.Email
		c.Email = &email
	}
	if a.SessionToken != nil {
		token := *a.SessionToken
		c.SessionToken = &token
	}
	return &c
}

// Profile returns the outward-facing projection of the account
func (a *Account) Profile() *Profile {
	p := &Profile{
		Username:       a.Username,
		FullName:       a.FullName,
		PrivilegeLevel: a.PrivilegeLevel,
	}
	if a.Email != nil {
		email := *a.Email
		p.Email = &email
	}
	return p
}

// Profile is the account projection returned to callers.
// It never carries the password hash or the session token.
type Profile struct {
	Username       string
	FullName       string
	PrivilegeLevel int
	Email          *string
}

// AccountPatch is a sparse update. Nil fields are left untouched.
type AccountPatch struct {
	Username       *string
	FullName       *string
	PrivilegeLevel *int
	PasswordHash   *string
	Email          *string

	// SetSessionToken marks SessionToken as part of the patch, which lets
	// a nil SessionToken clear the stored value.
	SetSessionToken bool
	SessionToken    *string

	UpdatedAt time.Time
}

// IsEmpty reports whether the patch changes nothing besides the timestamp
func (p AccountPatch) IsEmpty() bool {
	return p.Username == nil && p.FullName == nil && p.PrivilegeLevel == nil &&
		p.PasswordHash == nil && p.Email == nil && !p.SetSessionToken
}

// Apply merges the patch into a copy of the account and returns it
func (p AccountPatch) Apply(a Account) Account {
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.FullName != nil {
		a.FullName = *p.FullName
	}
	if p.PrivilegeLevel != nil {
		a.PrivilegeLevel = *p.PrivilegeLevel
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Email != nil {
		email := *p.Email
		a.Email = &email
	}
	if p.SetSessionToken {
		if p.SessionToken == nil {
			a.SessionToken = nil
		} else {
			token := *p.SessionToken
			a.SessionToken = &token
		}
	}
	if !p.UpdatedAt.IsZero() {
		a.UpdatedAt = p.UpdatedAt
	}
	return a
}

// Renames reports whether applying the patch to an account currently named
// username would change its username
func (p AccountPatch) Renames(username string) bool {
	return p.Username != nil && *p.Username != username
}

// AccountStats summarises the account population
type AccountStats struct {
	Accounts       int64
	ActiveSessions int64
}
