package security

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

// AdminAuth signs and verifies the bearer tokens handed out by admin login.
type AdminAuth struct {
	TokenAuth *jwtauth.JWTAuth
	exp       time.Duration
	now       func() time.Time
}

func NewAdminAuth(key []byte, exp time.Duration) *AdminAuth {
	return &AdminAuth{
		TokenAuth: jwtauth.New("HS256", key, nil),
		exp:       exp,
		now:       time.Now,
	}
}

func (a *AdminAuth) GenerateToken(subject string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"exp":  now.Add(a.exp).Unix(),
		"iat":  now.Unix(),
	}
	_, tokenString, err := a.TokenAuth.Encode(claims)
	return tokenString, err
}

func GetSubjectFromClaims(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", errors.New("sub claim is missing or not a string")
	}
	return sub, nil
}

func GetRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
