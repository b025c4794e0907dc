package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the data carried inside a session token.
type SessionClaims struct {
	Name        string `json:"name"`
	AvatarStyle string `json:"avatar_style"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates session tokens with an HMAC secret loaded
// from configuration.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed session token for a logged-in player.
func (t *TokenIssuer) Issue(name, avatarStyle string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Name:        name,
		AvatarStyle: avatarStyle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "vdm-lab",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates the signature and expiration of a token string.
func (t *TokenIssuer) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
