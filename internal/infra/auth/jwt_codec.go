package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"phonebook/config"
	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/service"
	"phonebook/internal/errors"
)

// scopedClaims is the wire form of entity.TokenClaims.
type scopedClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// jwtCodec is a concrete implementation of the TokenCodec interface using HMAC-signed JWTs.
type jwtCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewJWTCodec is the constructor for jwtCodec.
// Secret and algorithm are read once from the jwt config section.
func NewJWTCodec(cfg *config.Config) (service.TokenCodec, error) {
	if cfg.JWT == nil {
		return nil, errors.New("jwt config must be provided")
	}

	return newJWTCodec(cfg.JWT.SecretKey, cfg.JWT.Algorithm, time.Now)
}

func newJWTCodec(secret, algorithm string, now func() time.Time) (*jwtCodec, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	method, err := hmacMethod(algorithm)
	if err != nil {
		return nil, err
	}

	return &jwtCodec{
		secret: []byte(secret),
		method: method,
		now:    now,
	}, nil
}

func hmacMethod(algorithm string) (*jwt.SigningMethodHMAC, error) {
	switch algorithm {
	case "", jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, errors.Errorf("unsupported jwt algorithm: %s", algorithm)
	}
}

// Encode signs the claims with the configured secret.
func (c *jwtCodec) Encode(claims entity.TokenClaims) (string, error) {
	if !claims.Scope.IsValid() {
		return "", errors.Errorf("unknown token scope: %s", claims.Scope)
	}

	token := jwt.NewWithClaims(c.method, scopedClaims{
		Scope: string(claims.Scope),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,                        // Subject (who the token is for)
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),   // Issued At
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt), // Expiration Time
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

// Decode verifies the token and returns its claims.
func (c *jwtCodec) Decode(tokenString string) (entity.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	parsed := &scopedClaims{}
	token, err := parser.ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return c.secret, nil
	})
	if err != nil {
		return entity.TokenClaims{}, domainerrors.ErrInvalidToken.WrapMessage(err.Error())
	}
	if !token.Valid {
		return entity.TokenClaims{}, domainerrors.ErrInvalidToken.WrapMessage("token is not valid")
	}

	scope := entity.TokenScope(parsed.Scope)
	if !scope.IsValid() {
		return entity.TokenClaims{}, domainerrors.ErrInvalidToken.WrapMessage("unknown token scope")
	}

	claims := entity.TokenClaims{
		Subject:   parsed.Subject,
		ExpiresAt: parsed.ExpiresAt.Time,
		Scope:     scope,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}

	return claims, nil
}
