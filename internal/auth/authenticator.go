package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// ClinicianUserID is the subject of every clinician session. The PIN is shared.
const ClinicianUserID = "clinical-team"

// Authenticator runs the clinician PIN login
type Authenticator struct {
	pins    *PINManager
	tokens  *TokenManager
	limiter *RateLimiter
	logger  *logger.Logger
}

// NewAuthenticator builds the PIN check, token issuer and attempt limiter from config
func NewAuthenticator(cfg *config.AuthConfig, log *logger.Logger) (*Authenticator, error) {
	pins, err := NewPINManager(cfg.AdminPIN, cfg.AdminPINHash)
	if err != nil {
		return nil, fmt.Errorf("failed to set up admin pin: %w", err)
	}
	return &Authenticator{
		pins:    pins,
		tokens:  NewTokenManager(cfg.JWTSecret, cfg.Issuer, config.Seconds(cfg.TokenTTL)),
		limiter: NewRateLimiter(cfg.PINAttemptsPerMin, time.Minute),
		logger:  log,
	}, nil
}

// AdminLogin exchanges the PIN for a bearer token. clientKey scopes the attempt limit.
func (a *Authenticator) AdminLogin(ctx context.Context, pin, clientKey string) (*types.AuthToken, error) {
	allowed, err := a.limiter.Allow(clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check login attempts: %w", err)
	}
	if !allowed {
		a.logger.Security("admin_login_throttled", clientKey, nil)
		return nil, types.NewRateLimitError(types.ErrCodeRateLimitExceeded, "too many PIN attempts, try again shortly")
	}

	ok, err := a.pins.Verify(pin)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to verify pin", err)
	}
	if !ok {
		a.logger.Security("admin_pin_rejected", clientKey, map[string]interface{}{"request": ctx.Value(logger.RequestIDKey)})
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "Invalid PIN")
	}

	_ = a.limiter.Reset(clientKey)
	token, err := a.tokens.IssueToken(&types.UserClaims{
		UserID:   ClinicianUserID,
		Username: "Clinical Team",
		Role:     types.RoleClinician,
	})
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to issue session", err)
	}
	a.logger.Audit(ClinicianUserID, "admin_login", "admin", true, nil)
	return token, nil
}

// Authorize validates a bearer token for the clinician dashboard
func (a *Authenticator) Authorize(token string) (*types.UserClaims, error) {
	claims, err := a.tokens.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != types.RoleClinician {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "clinician session required")
	}
	return claims, nil
}

// Limiter exposes the attempt limiter so idle buckets can be swept
func (a *Authenticator) Limiter() *RateLimiter {
	return a.limiter
}
