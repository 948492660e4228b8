// Package auth verifies the bearer tokens minted by the credential
// service. The chat core only needs the stable user id a token carries;
// issuing credentials and managing accounts live outside this repo.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager signs and validates the JWT tokens used by the API.
type JWTManager struct {
	// keys maps key id ("kid") to HMAC secret so tokens signed under a
	// previous key remain verifiable during rotation.
	keys      map[string]string
	activeKid string
	duration  time.Duration
}

// Claims is the JWT payload; UserID is the opaque stable user identity.
type Claims struct {
	UserID               string `json:"user_id"`
	jwt.RegisteredClaims        // includes ExpiresAt, IssuedAt, etc.
}

// NewJWTManager returns a manager with a single signing secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{"default": secretKey}, "default", duration)
}

// NewJWTManagerFromKeys returns a manager holding multiple keys for
// rotation. activeKid selects the key used to sign new tokens; when empty,
// an arbitrary key from the map is used.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	if activeKid == "" {
		for kid := range keys {
			activeKid = kid
			break
		}
	}
	return &JWTManager{keys: keys, activeKid: activeKid, duration: duration}
}

// GenerateToken issues a signed JWT for a user id. Used by tests and by the
// credential collaborator; the chat server itself only verifies.
func (m *JWTManager) GenerateToken(userID string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	expiresAt := time.Now().Add(m.duration)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.activeKid

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC is acceptable; reject alg-substitution tokens.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Pick the verification key by kid, falling back to the active
		// key for tokens minted before rotation support.
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			kid = m.activeKid
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown signing key id %q", kid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}
