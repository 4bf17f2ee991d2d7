package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/types"
)

// TokenManager issues and validates HS256 session tokens
type TokenManager struct {
	jwtSecret []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

var _ interfaces.TokenValidator = (*TokenManager)(nil)

// NewTokenManager creates a token manager
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		jwtSecret: []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for claims
func (tm *TokenManager) IssueToken(claims *types.UserClaims) (*types.AuthToken, error) {
	now := tm.now()
	jwtClaims := &JWTClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   claims.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	tokenString, err := token.SignedString(tm.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.AuthToken{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tm.ttl.Seconds()),
		IssuedAt:    now,
	}, nil
}

// ValidateJWT validates a token and returns its claims
func (tm *TokenManager) ValidateJWT(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.jwtSecret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid session token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid token claims")
	}

	return &types.UserClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     types.UserRole(claims.Role),
	}, nil
}
