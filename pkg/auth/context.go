package auth

import (
	"context"
	"fmt"
)

// GetActorFromContext extracts the acting identity from JWT claims in the
// context. Returns empty string if not authenticated.
func GetActorFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Actor()
}

// RequireActorFromContext extracts the acting identity from context and
// returns an error if not found. Use this when attribution is required, as
// it is for contributions and resolutions.
func RequireActorFromContext(ctx context.Context) (string, error) {
	actor := GetActorFromContext(ctx)
	if actor == "" {
		return "", fmt.Errorf("acting identity not found in context")
	}
	return actor, nil
}

// IsAdminFromContext reports whether the authenticated caller holds the
// admin role. Returns false when unauthenticated.
func IsAdminFromContext(ctx context.Context) bool {
	claims, ok := GetClaims(ctx)
	return ok && claims != nil && claims.IsAdmin()
}
