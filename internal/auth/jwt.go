package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const DefaultTokenExpiration = time.Hour * 24

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

type Claims struct {
	UserId int `json:"user_id"`
	jwt.StandardClaims
}

// JWTManager issues and verifies HS256 session tokens. When a revocation
// store is configured, revoked token ids fail verification.
type JWTManager struct {
	signingKey  []byte
	revocations RevocationStore
}

func NewJWTManager(signingKey []byte, revocations RevocationStore) *JWTManager {
	return &JWTManager{
		signingKey:  signingKey,
		revocations: revocations,
	}
}

func (m *JWTManager) Issue(userId int, exp time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserId: userId,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(exp).Unix(),
		},
	})

	return token.SignedString(m.signingKey)
}

func (m *JWTManager) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserId <= 0 {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}

// Verify resolves a token into the user id it was issued for.
func (m *JWTManager) Verify(ctx context.Context, tokenString string) (int, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return 0, err
	}

	if m.revocations != nil && claims.Id != "" {
		revoked, err := m.revocations.IsRevoked(ctx, claims.Id)
		if err != nil {
			return 0, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return 0, ErrTokenRevoked
		}
	}

	return claims.UserId, nil
}

// Revoke marks the token's id as revoked until the token would have expired.
func (m *JWTManager) Revoke(ctx context.Context, tokenString string) error {
	if m.revocations == nil {
		return nil
	}

	claims, err := m.parse(tokenString)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 || claims.Id == "" {
		return nil
	}

	return m.revocations.Revoke(ctx, claims.Id, ttl)
}
