package jwttoken

import (
	"bloodbank/internal/platform/middleware"
)

// ToMiddlewareClaims converts token claims to the middleware's view of them.
func ToMiddlewareClaims(claims *Claims) *middleware.StaffClaims {
	return &middleware.StaffClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}
}

// JWTServiceAdapter adapts JWTService to middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.StaffClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
