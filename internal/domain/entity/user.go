// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the principal: an account that can authenticate and act on contacts.
type User struct {
	ID           uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Email        string    // Login identifier, unique and case-sensitive as stored.
	Name         string    // The user's display name.
	PasswordHash string    // bcrypt digest of the password.
	Role         Role      // Exactly one role.
	Confirmed    bool      // Whether the email address has been verified.
	RefreshToken *string   // The single refresh token currently valid for this user, nil when logged out.
	AvatarURL    *string   // Public URL of the avatar image.
	CreatedAt    time.Time // Timestamp of when this user account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this user's data.
}

// HasRefreshToken reports whether token is the one currently stored for the user.
func (u *User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && *u.RefreshToken == token
}
