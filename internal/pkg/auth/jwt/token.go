package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// ClientAccessExpiration bounds a WebSocket session token.
	ClientAccessExpiration = time.Hour

	// WebhookExpiration bounds a webhook bearer token.
	WebhookExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "chatr"
)

// ErrWrongScope is returned by ParseScoped for a valid token minted for another purpose.
var ErrWrongScope = errors.New("token scope not accepted")

// GenerateToken signs payload with HS256, stamping the standard claims.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT Token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// ParseScoped parses tokenString and requires the given scope.
func ParseScoped(tokenString, secretKey, scope string) (*Payload, error) {
	p, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return nil, err
	}
	if p.Scope != scope {
		return nil, ErrWrongScope
	}
	if scope == ScopeClient && p.UserID == "" {
		return nil, errors.New("client token without user id")
	}
	return p, nil
}
