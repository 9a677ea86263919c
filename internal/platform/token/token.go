// Package token validates bearer tokens minted by the external identity
// provider. This service never issues tokens; it only verifies the signature
// and lifts the operator's identity, role, and tier out of the claims.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"nidhi/pkg/domain"
	"nidhi/pkg/requestcontext"
)

// Validator verifies HS256 tokens against the shared signing key.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

type claims struct {
	Role   string `json:"role"`
	TierID string `json:"tier_id"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a bearer token, returning the actor it
// vouches for.
func (v *Validator) ValidateToken(tokenString string) (requestcontext.ActorInfo, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return requestcontext.ActorInfo{}, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return requestcontext.ActorInfo{}, fmt.Errorf("invalid token")
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return requestcontext.ActorInfo{}, fmt.Errorf("token role: %w", err)
	}
	tierID, err := domain.ParseTierID(c.TierID)
	if err != nil {
		return requestcontext.ActorInfo{}, fmt.Errorf("token tier: %w", err)
	}
	if c.Subject == "" {
		return requestcontext.ActorInfo{}, fmt.Errorf("token missing subject")
	}
	return requestcontext.ActorInfo{
		OperatorID: c.Subject,
		Role:       role,
		TierID:     tierID,
	}, nil
}
