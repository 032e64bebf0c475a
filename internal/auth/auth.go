// Package auth is the connection gate: every persistent connection and
// every REST call must carry a token minted by the external auth service.
// Only verification happens here; credential issuance lives elsewhere.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Sketch/internal/domain"
)

var ErrAuthentication = errors.New("authentication error")

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses the token and returns the identity it carries.
// Any failure collapses into ErrAuthentication: the caller only needs to
// know the connection attempt is dead.
func (v *Verifier) Verify(token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrAuthentication
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrAuthentication
	}
	user, err := domain.NewUser(domain.UserID(claims.UserID), claims.Username)
	if err != nil {
		return nil, ErrAuthentication
	}
	return user, nil
}

// Sign mints a token for the given identity. The production issuer is the
// auth service; this exists for tooling and tests.
func (v *Verifier) Sign(user *domain.User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   string(user.ID),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
