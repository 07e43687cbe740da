package fakes

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// TestSecret is a 32-character HMAC secret for tests.
const TestSecret = "0123456789abcdef0123456789abcdef"

// SignToken signs the given claims with HS256.
func SignToken(secret string, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// UserToken signs a minimal valid token for the given subject and email,
// expiring one hour from now.
func UserToken(secret, sub, email string) (string, error) {
	return SignToken(secret, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

// ExpiredUserToken signs a token whose exp claim is already in the past.
func ExpiredUserToken(secret, sub, email string) (string, error) {
	return SignToken(secret, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iat":   time.Now().Add(-2 * time.Hour).Unix(),
		"exp":   time.Now().Add(-time.Hour).Unix(),
	})
}
