package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultJWTSubject is the sub claim when the auth string names none
	DefaultJWTSubject = "hitupload"
	// JWTIssuer is the iss claim of every minted token
	JWTIssuer = "hitupload"
	// JWTTTL is how long a minted token stays valid
	JWTTTL = 5 * time.Minute
)

// SignJWT mints a short-lived HS256 token for subject. A fresh token is
// minted for every attempt so retries never send an expired one.
func SignJWT(secret, subject string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    JWTIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(JWTTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
