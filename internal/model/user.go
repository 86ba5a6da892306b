package model

import "time"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleReadOnly = "readonly"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleReadOnly:
		return true
	}

	return false
}

type User struct {
	ID            string
	Email         string
	Name          string
	Role          string
	MFAEnabled    bool
	EmailVerified bool
	LastSignedIn  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
