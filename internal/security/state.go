package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("invalid oauth state")

type StateClaims struct {
	Provider   string `json:"prv"`
	RedirectTo string `json:"rto,omitempty"`
	jwt.RegisteredClaims
}

// GenerateState signs the OAuth state parameter so the callback can verify
// it without keeping server-side state.
func GenerateState(secret string, provider string, redirectTo string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := StateClaims{
		Provider:   provider,
		RedirectTo: redirectTo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

func ParseState(state string, secret string, provider string) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.Provider != provider {
		return nil, ErrInvalidState
	}
	return claims, nil
}
