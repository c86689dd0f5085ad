package entity

import "time"

// TokenScope distinguishes what a signed token may be used for.
type TokenScope string

const (
	ScopeAccess            TokenScope = "access_token"
	ScopeRefresh           TokenScope = "refresh_token"
	ScopeEmailVerification TokenScope = "email_token"
)

// IsValid checks if the scope is one of the known scopes.
func (s TokenScope) IsValid() bool {
	switch s {
	case ScopeAccess, ScopeRefresh, ScopeEmailVerification:
		return true
	default:
		return false
	}
}

// Default token lifetimes.
const (
	DefaultAccessTTL            = 15 * time.Minute
	DefaultRefreshTTL           = 7 * 24 * time.Hour
	DefaultEmailVerificationTTL = 7 * 24 * time.Hour
)

// TokenClaims is the payload of a signed token. It is immutable once issued.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scope     TokenScope
}

// NewClaims builds claims issued at now, truncated to whole seconds.
func NewClaims(subject string, scope TokenScope, now time.Time, lifetime time.Duration) TokenClaims {
	issued := now.UTC().Truncate(time.Second)

	return TokenClaims{
		Subject:   subject,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(lifetime),
		Scope:     scope,
	}
}

// Expired reports whether the claims are no longer valid at now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// TokenTypeBearer is the token type reported to clients.
const TokenTypeBearer = "bearer"
