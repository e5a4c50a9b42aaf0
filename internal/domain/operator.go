package domain

import "github.com/golang-jwt/jwt/v5"

// RoleOperator is the only role allowed on the diagnostic surface
const RoleOperator = "operator"

// OperatorClaims represents the claims of an operator bearer token
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
