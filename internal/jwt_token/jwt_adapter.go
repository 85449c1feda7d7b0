package jwttoken

import (
	id "movetrack/pkg/domain"
	authmw "movetrack/pkg/platform/middleware/auth"
)

// JWTServiceAdapter narrows JWTService to what the auth middleware needs.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.SupplierClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	supplierID, err := id.ParseSupplierID(claims.SupplierID)
	if err != nil {
		return nil, err
	}
	return &authmw.SupplierClaims{
		SupplierID: supplierID,
		Subject:    claims.Subject,
		JTI:        claims.ID,
	}, nil
}
