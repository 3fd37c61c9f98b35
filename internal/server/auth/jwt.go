// Package auth issues and parses the HS256 bearer tokens that carry a
// session: the session ID travels as jti and the user ID as sub.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims of a session token. ID (jti) holds the
// session ID and Subject holds the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// SessionClaims is what a verified token yields.
type SessionClaims struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// GenerateToken signs a token for sessionID and userID expiring at expiresAt.
func GenerateToken(sessionID, userID string, issuedAt, expiresAt time.Time, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its session claims.
// Expired tokens yield common.ErrTokenExpired; every other failure yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*SessionClaims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &SessionClaims{
		SessionID: claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
