// Package auth issues and validates the bearer tokens that gate the
// swap intake endpoint.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

// Claims carries the registered claim set plus the caller name of the
// service that minted the token.
type Claims struct {
	jwt.RegisteredClaims
	Caller string
}

// GenerateIntakeToken mints an HS256 bearer token for a trading-signal
// producer.
func GenerateIntakeToken(caller string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Caller: caller,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseIntakeToken validates a bearer token and returns the caller name.
// Expired, forged or malformed tokens all yield an error.
func ParseIntakeToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", shared.ErrInvalidToken
	}

	return claims.Caller, nil
}
