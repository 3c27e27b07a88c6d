package model

import "time"

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

// User is an account. Email is empty for phone-only accounts, PasswordHash is
// empty for accounts that only ever signed in with a one-time code.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Phone        string
	CreatedAt    time.Time
}

func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
