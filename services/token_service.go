// services/token_service.go
package services

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only verification failure surfaced to callers.
// Wrong part count, undecodable segments, signature mismatch and algorithm
// downgrade attempts all collapse into it — a bad token is a hard reject,
// never a partial trust.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies HS256 session tokens
// (base64url(header).base64url(payload).base64url(signature), header fixed
// to {"alg":"HS256","typ":"JWT"}). The secret is process-wide configuration
// read once at startup; rotating it invalidates every outstanding token.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Issue signs the caller-supplied claims into a compact token string.
func (s *TokenService) Issue(claims map[string]interface{}) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	return token.SignedString(s.secret)
}

// Verify decodes the token, recomputes the signature over the encoded
// segments as presented and returns the payload claims on match.
func (s *TokenService) Verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID extracts the numeric user id from verified claims. JSON numbers
// arrive as float64 out of the decoder.
func (s *TokenService) UserID(claims jwt.MapClaims) (uint, error) {
	raw, ok := claims["user_id"].(float64)
	if !ok || raw < 0 {
		return 0, ErrInvalidToken
	}
	return uint(raw), nil
}
