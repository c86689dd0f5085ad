package service

import "phonebook/internal/domain/entity"

// TokenCodec signs and verifies bearer tokens.
type TokenCodec interface {
	// Encode signs the claims. Identical claims produce identical tokens.
	Encode(claims entity.TokenClaims) (string, error)

	// Decode verifies the signature and expiry and returns the claims.
	// Every failure is reported as domain ErrInvalidToken. Scope is not checked against any expectation.
	Decode(token string) (entity.TokenClaims, error)
}
