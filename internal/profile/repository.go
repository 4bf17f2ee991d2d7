package profile

import (
	"context"
	"sync"

	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/types"
)

// MemoryRepository keeps profiles and the clinical team in process memory.
// It is the default backend when no database is configured.
type MemoryRepository struct {
	mu         sync.RWMutex
	profiles   map[string]*types.PatientProfile
	order      []string
	clinicians []*types.Clinician
	nextID     int64
}

var (
	_ interfaces.ProfileRepository   = (*MemoryRepository)(nil)
	_ interfaces.ClinicianRepository = (*MemoryRepository)(nil)
)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[string]*types.PatientProfile),
		nextID:   1,
	}
}

// GetProfile returns a copy of the stored profile
func (r *MemoryRepository) GetProfile(ctx context.Context, id string) (*types.PatientProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "patient not found")
	}
	return p.Clone(), nil
}

// ListProfiles returns copies in insertion order
func (r *MemoryRepository) ListProfiles(ctx context.Context, filters *types.ProfileFilters) ([]*types.PatientProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.PatientProfile, 0, len(r.order))
	for _, id := range r.order {
		p := r.profiles[id]
		if filters.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// SaveProfile inserts or replaces a profile
func (r *MemoryRepository) SaveProfile(ctx context.Context, profile *types.PatientProfile) error {
	if profile == nil || profile.ID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "profile id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.ID]; !ok {
		r.order = append(r.order, profile.ID)
	}
	r.profiles[profile.ID] = profile.Clone()
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// ListClinicians returns the team in the order it was added
func (r *MemoryRepository) ListClinicians(ctx context.Context) ([]*types.Clinician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Clinician, len(r.clinicians))
	for i, c := range r.clinicians {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// CreateClinician stores a team member. A zero id is assigned.
func (r *MemoryRepository) CreateClinician(ctx context.Context, clinician *types.Clinician) (*types.Clinician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *clinician
	if c.ID == 0 {
		c.ID = r.nextID
	}
	for _, existing := range r.clinicians {
		if existing.ID == c.ID {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput, "clinician id already exists",
				map[string]interface{}{"id": c.ID})
		}
	}
	if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
	r.clinicians = append(r.clinicians, &c)

	out := c
	return &out, nil
}

// DeleteClinician removes a team member by id
func (r *MemoryRepository) DeleteClinician(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.clinicians {
		if c.ID == id {
			r.clinicians = append(r.clinicians[:i], r.clinicians[i+1:]...)
			return nil
		}
	}
	return types.NewNotFoundError(types.ErrCodeNotFound, "clinician not found")
}
