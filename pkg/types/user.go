package types

import "time"

// UserRole represents who is acting on the portal
type UserRole string

const (
	RolePatient   UserRole = "patient"
	RoleClinician UserRole = "clinician"
	RoleSystem    UserRole = "system"
)

// ClinicianStatus is the roster status of a clinical team member
type ClinicianStatus string

const (
	ClinicianActive  ClinicianStatus = "Active"
	ClinicianInvited ClinicianStatus = "Invited"
)

// Clinician is a member of the clinical team shown on the admin settings page
type Clinician struct {
	ID     int64           `json:"id" yaml:"id"`
	Name   string          `json:"name" yaml:"name"`
	Role   string          `json:"role" yaml:"role"`
	Email  string          `json:"email" yaml:"email"`
	Status ClinicianStatus `json:"status" yaml:"status"`
}

// UserClaims represents the identity carried in a portal session token
type UserClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// AuthToken represents authentication token response
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// PatientLoginRequest is the patient sign-in form. Credentials are not checked.
type PatientLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider,omitempty"`
}

// AdminLoginRequest carries the clinical PIN
type AdminLoginRequest struct {
	PIN string `json:"pin"`
}
