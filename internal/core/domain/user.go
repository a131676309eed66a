package domain

import "time"

// User models a registered chat participant.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Online       bool       `json:"online"`
	LastLogoutAt *time.Time `json:"lastLogoutAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Identity is the authenticated caller attached to a request by the auth middleware.
type Identity struct {
	ID       string
	Username string
	// TokenID and ExpiresAt describe the bearer token that produced this identity.
	TokenID   string
	ExpiresAt time.Time
}

// UserStatus is the presence view exposed to other participants.
type UserStatus struct {
	Username     string     `json:"username"`
	Online       bool       `json:"online"`
	LastLogoutAt *time.Time `json:"lastLogoutAt"`
}

// Status returns the presence view of u.
func (u *User) Status() UserStatus {
	return UserStatus{
		Username:     u.Username,
		Online:       u.Online,
		LastLogoutAt: u.LastLogoutAt,
	}
}
