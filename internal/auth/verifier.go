// README: Bearer token verification; identity issuance lives with the external identity provider.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"housecall/internal/types"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is the verified subject of a token.
type Identity struct {
	UserID types.ID
	Role   types.Role
}

// Verifier validates a bearer token and returns the identity it asserts.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (Identity, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrUnauthorized
	}
	c, ok := tok.Claims.(*claims)
	if !ok || c.Subject == "" {
		return Identity{}, ErrUnauthorized
	}
	role := types.Role(c.Role)
	switch role {
	case types.RoleClient, types.RoleMedic, types.RoleAdmin:
	default:
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: types.ID(c.Subject), Role: role}, nil
}
