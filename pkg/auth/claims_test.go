package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaims_Roles(t *testing.T) {
	claims := &Claims{Roles: []string{"curator", RoleAdmin}}

	assert.True(t, claims.HasRole("curator"))
	assert.True(t, claims.IsAdmin())
	assert.False(t, claims.HasRole("owner"))

	assert.False(t, (&Claims{}).IsAdmin())
}

func TestClaims_Actor(t *testing.T) {
	withEmail := &Claims{Email: "alice@example.com"}
	withEmail.Subject = "user-123"
	assert.Equal(t, "alice@example.com", withEmail.Actor())

	subjectOnly := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}}
	assert.Equal(t, "user-123", subjectOnly.Actor())
}

func TestGetClaimsFromContext(t *testing.T) {
	_, ok := GetClaims(context.Background())
	assert.False(t, ok)

	claims := &Claims{Email: "alice@example.com"}
	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	got, ok := GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, claims, got)

	assert.Equal(t, "alice@example.com", GetActorFromContext(ctx))
	assert.Equal(t, "", GetActorFromContext(context.Background()))
}

func TestRequireActorFromContext(t *testing.T) {
	_, err := RequireActorFromContext(context.Background())
	assert.Error(t, err)

	ctx := context.WithValue(context.Background(), ClaimsKey, &Claims{Email: "alice@example.com"})
	actor, err := RequireActorFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", actor)
}

func TestIsAdminFromContext(t *testing.T) {
	assert.False(t, IsAdminFromContext(context.Background()))

	ctx := context.WithValue(context.Background(), ClaimsKey, &Claims{Roles: []string{RoleAdmin}})
	assert.True(t, IsAdminFromContext(ctx))
}
