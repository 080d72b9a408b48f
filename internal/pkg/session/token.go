package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is the fixed validity window for issued session tokens.
const TokenTTL = 30 * 24 * time.Hour

const tokenIssuer = "healhub-auth"

// ErrInvalidToken covers every way a presented token can fail verification:
// bad signature, wrong algorithm, malformed payload or expiry in the past.
var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims binds a session token to a local user account.
type Claims struct {
	jwt.RegisteredClaims
	UserID uint `json:"user_id"`
}

// Issuer mints and verifies the signed bearer tokens handed out after
// sign-in. Tokens are self-contained; nothing is stored server-side and
// rotating the secret invalidates every outstanding session at once.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer signing with the given secret.
func NewIssuer(secret string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required for session tokens")
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}, nil
}

// Mint returns a signed token bound to the given user, valid for TokenTTL.
func (i *Issuer) Mint(userID uint) (string, error) {
	if userID == 0 {
		return "", errors.New("user id is required for session tokens")
	}

	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the user id the token is
// bound to. Callers only branch on ErrInvalidToken; the underlying cause is
// wrapped for logs.
func (i *Issuer) Verify(tokenString string) (uint, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return i.now()
	}))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
