package interfaces

import (
	"context"

	"github.com/weighright/portal/pkg/types"
)

// ProfileRepository defines the interface for patient record persistence
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*types.PatientProfile, error)
	ListProfiles(ctx context.Context, filters *types.ProfileFilters) ([]*types.PatientProfile, error)
	SaveProfile(ctx context.Context, profile *types.PatientProfile) error
	Ping(ctx context.Context) error
}

// ClinicianRepository defines the interface for the clinical team roster
type ClinicianRepository interface {
	ListClinicians(ctx context.Context) ([]*types.Clinician, error)
	CreateClinician(ctx context.Context, clinician *types.Clinician) (*types.Clinician, error)
	DeleteClinician(ctx context.Context, id int64) error
}

// NotificationService defines the interface for patient and clinic notifications
type NotificationService interface {
	NotifyPatient(ctx context.Context, profile *types.PatientProfile, subject, body string) error
	NotifyClinicians(ctx context.Context, subject, body string, data map[string]interface{}) error
}

// TokenValidator defines the interface for clinician session tokens
type TokenValidator interface {
	IssueToken(claims *types.UserClaims) (*types.AuthToken, error)
	ValidateJWT(token string) (*types.UserClaims, error)
}

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(key string) (bool, error)
	Reset(key string) error
	GetLimits(key string) (int, int, error) // current, limit
}
