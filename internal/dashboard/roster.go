package dashboard

import (
	"context"
	"strings"

	"github.com/weighright/portal/internal/profile"
	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// DefaultClinicianRole is assigned to invites that do not name a role
const DefaultClinicianRole = "Prescriber"

// Roster manages the clinical team list on the admin settings page
type Roster struct {
	repo   interfaces.ClinicianRepository
	logger *logger.Logger
}

// NewRoster creates a roster over repo
func NewRoster(repo interfaces.ClinicianRepository, log *logger.Logger) *Roster {
	return &Roster{repo: repo, logger: log}
}

// Seed adds the given team when the roster is empty
func (r *Roster) Seed(ctx context.Context, team []types.Clinician) error {
	existing, err := r.repo.ListClinicians(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for i := range team {
		if _, err := r.repo.CreateClinician(ctx, &team[i]); err != nil {
			return err
		}
	}
	return nil
}

// List returns the team
func (r *Roster) List(ctx context.Context) ([]*types.Clinician, error) {
	return r.repo.ListClinicians(ctx)
}

// Invite adds a clinician with status Invited
func (r *Roster) Invite(ctx context.Context, name, email, role string) (*types.Clinician, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "name and email are required",
			map[string]interface{}{"name": name, "email": email})
	}
	if strings.TrimSpace(role) == "" {
		role = DefaultClinicianRole
	}

	c, err := r.repo.CreateClinician(ctx, &types.Clinician{
		Name:   name,
		Role:   role,
		Email:  email,
		Status: types.ClinicianInvited,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Audit(profile.SourceAdmin, "invite_clinician", "clinician:"+email, true,
		map[string]interface{}{"id": c.ID, "role": role})
	return c, nil
}

// Remove deletes a clinician by id
func (r *Roster) Remove(ctx context.Context, id int64) error {
	err := r.repo.DeleteClinician(ctx, id)
	r.logger.Audit(profile.SourceAdmin, "remove_clinician", "clinician", err == nil,
		map[string]interface{}{"id": id})
	return err
}
