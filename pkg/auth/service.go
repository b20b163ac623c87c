package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrNoTokenValidator     = errors.New("no token validator configured")
)

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates a bearer JWT from the request.
	// Returns the validated claims, the raw token string, or an error.
	//
	// When signature verification is disabled and no token is present, a
	// development identity with the admin role is returned instead of an
	// error, so a local instance is usable without an identity provider.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

// authService implements AuthService.
type authService struct {
	jwksClient         JWKSClientInterface
	enableVerification bool
	devIdentity        string
	logger             *zap.Logger
}

// NewAuthService creates a new AuthService with the given JWKS client.
// devIdentity is the email attributed to unauthenticated requests when
// verification is disabled.
func NewAuthService(jwksClient JWKSClientInterface, enableVerification bool, devIdentity string, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient:         jwksClient,
		enableVerification: enableVerification,
		devIdentity:        devIdentity,
		logger:             logger,
	}
}

// ValidateRequest extracts and validates a bearer JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if !s.enableVerification {
			return s.devClaims(), "", nil
		}
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return nil, "", ErrInvalidAuthFormat
	}

	// A request can carry a token even in dev mode; parsing it requires a
	// client. Erroring here keeps a miswired service from panicking.
	if s.jwksClient == nil {
		s.logger.Error("Bearer token received but no JWKS client is configured",
			zap.String("path", r.URL.Path))
		return nil, "", ErrNoTokenValidator
	}

	claims, err := s.jwksClient.ValidateToken(parts[1])
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, "", err
	}

	return claims, parts[1], nil
}

// devClaims synthesizes the development identity used when verification is
// off and the request carries no token.
func (s *authService) devClaims() *Claims {
	return &Claims{
		Email: s.devIdentity,
		Roles: []string{RoleAdmin},
	}
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
