package auth

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/keyroom-server/internal/config"
)

var (
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotAdmin is returned for a valid token that does not name the administrator.
	ErrNotAdmin = errors.New("not the administrator")
	// ErrDisabled is returned when no admin secret is configured.
	ErrDisabled = errors.New("admin api disabled")
)

// Authorizer verifies that a request comes from the single administrator.
type Authorizer struct {
	adminID   string
	jwtConfig *JWTConfig
}

// NewAuthorizer creates an authorizer for adminID.
func NewAuthorizer(jwtConfig *JWTConfig, adminID string) *Authorizer {
	return &Authorizer{adminID: adminID, jwtConfig: jwtConfig}
}

// FromConfig builds an authorizer from the admin section of the config.
func FromConfig(cfg config.AdminConfig) *Authorizer {
	return NewAuthorizer(&JWTConfig{
		Secret: []byte(cfg.Secret),
		Issuer: cfg.Issuer,
		TTL:    cfg.TokenTTL,
	}, cfg.ID)
}

// Enabled reports whether a signing secret is configured.
func (a *Authorizer) Enabled() bool {
	return a != nil && len(a.jwtConfig.Secret) > 0
}

// IssueAdminToken signs a token for the administrator.
func (a *Authorizer) IssueAdminToken() (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	token, err := GenerateToken(a.jwtConfig, a.adminID)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Authorize validates tokenString and checks that its subject is the administrator.
func (a *Authorizer) Authorize(tokenString string) (*Claims, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	claims, err := ValidateToken(a.jwtConfig, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != a.adminID || claims.Role != RoleAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}
