package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tasktrack/api"
)

// TokenTTL is the fixed expiry window for issued tokens.
const TokenTTL = 7 * 24 * time.Hour

// TokenService signs and verifies identity tokens. The secret is injected once
// at construction and never written afterwards.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret, ttl: TokenTTL}
}

// Issue produces a signed token carrying the user's id and role.
func (s *TokenService) Issue(userID int, role api.Role) (string, error) {
	now := time.Now()
	claims := &api.Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and extracts the identity. Expired tokens
// yield api.ErrTokenExpired; any other failure yields api.ErrTokenInvalid.
func (s *TokenService) Verify(tokenStr string) (api.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &api.Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return api.Identity{}, api.ErrTokenExpired
		}
		return api.Identity{}, api.ErrTokenInvalid
	}
	claims, ok := token.Claims.(*api.Claims)
	if !ok || !token.Valid {
		return api.Identity{}, api.ErrTokenInvalid
	}
	role, ok := api.ParseRole(claims.Role)
	if !ok {
		return api.Identity{}, api.ErrTokenInvalid
	}
	return api.Identity{UserID: claims.UserID, Role: role}, nil
}
