package models

import "time"

// User is an application account, created on first login
type User struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	LastLoginAt time.Time `json:"last_login_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot captures the row for the audit log
func (u *User) Snapshot() *Snapshot {
	return NewSnapshot().
		Set("id", Int(u.ID)).
		Set("subject", String(u.Subject)).
		Set("email", String(u.Email)).
		Set("display_name", String(u.DisplayName)).
		Set("last_login_at", String(FormatTimestamp(u.LastLoginAt))).
		Set("updated_at", String(FormatTimestamp(u.UpdatedAt)))
}
