package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const purposeVerifyEmail = "verify_email"

type verifyClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// issueVerifyToken mints the signed token mailed (well, logged) to a new user
// to confirm their address.
func issueVerifyToken(userID, secret string, ttl time.Duration) (string, error) {
	claims := verifyClaims{
		Purpose: purposeVerifyEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseVerifyToken validates the token and returns the user id it was minted
// for.
func parseVerifyToken(tokenString, secret string) (string, error) {
	var claims verifyClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Purpose != purposeVerifyEmail {
		return "", errors.New("invalid verification token")
	}
	return claims.Subject, nil
}
