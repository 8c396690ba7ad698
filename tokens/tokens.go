package tokens

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

// Upload grants: short-lived HS256 tokens binding one connection to
// one room. The server issues a grant after create/join and the
// upload endpoint refuses files without one. Grants carry no user
// identity, only the ephemeral connection handle.

var ErrInvalidToken = errors.New("invalid or expired upload token")

func Issue(secret, roomName, connID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"room": roomName,
		"conn": connID,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Verify(secret, tokenString, roomName, connID string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}
	if claims["room"] != roomName || claims["conn"] != connID {
		return ErrInvalidToken
	}
	return nil
}
