// Package profile owns the shared patient record. Every write, from either
// dashboard, goes through Store.Update so both views always see the same data.
package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// Sources recorded against each write
const (
	SourcePatient = "patient"
	SourceAdmin   = "admin"
	SourceSystem  = "system"
)

// ChangeListener is called after a write is committed. before and after are copies.
type ChangeListener func(ctx context.Context, source string, before, after *types.PatientProfile)

// Store serializes writes to the profile repository
type Store struct {
	mu        sync.Mutex
	repo      interfaces.ProfileRepository
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
	listeners []ChangeListener
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how message and note ids are minted
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// WithListener registers a change listener
func WithListener(l ChangeListener) StoreOption {
	return func(s *Store) { s.listeners = append(s.listeners, l) }
}

// NewStore creates a store over repo
func NewStore(repo interfaces.ProfileRepository, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		logger: log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed writes profiles that are not already stored. Existing records win.
func (s *Store) Seed(ctx context.Context, profiles []*types.PatientProfile) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeded := 0
	for _, p := range profiles {
		_, err := s.repo.GetProfile(ctx, p.ID)
		if err == nil {
			continue
		}
		if !types.IsType(err, types.ErrorTypeNotFound) {
			return seeded, fmt.Errorf("failed to check patient %s: %w", p.ID, err)
		}
		c := p.Clone()
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = s.now().UTC()
		}
		if err := s.repo.SaveProfile(ctx, c); err != nil {
			return seeded, fmt.Errorf("failed to seed patient %s: %w", p.ID, err)
		}
		seeded++
	}
	s.logger.WithField("seeded", seeded).Info("Patient profiles seeded")
	return seeded, nil
}

// Get returns a copy of a profile
func (s *Store) Get(ctx context.Context, id string) (*types.PatientProfile, error) {
	return s.repo.GetProfile(ctx, id)
}

// List returns copies of the profiles matching filters
func (s *Store) List(ctx context.Context, filters *types.ProfileFilters) ([]*types.PatientProfile, error) {
	return s.repo.ListProfiles(ctx, filters)
}

// Ping reports whether the backing repository is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Update merges patch into the profile and returns the committed copy
func (s *Store) Update(ctx context.Context, id string, patch *types.ProfilePatch, source string) (*types.PatientProfile, error) {
	if patch == nil || patch.Empty() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "update sets no fields", nil)
	}
	return s.UpdateWith(ctx, id, source, func(*types.PatientProfile) (*types.ProfilePatch, error) {
		return patch, nil
	})
}

// UpdateWith builds a patch from the current record under the write lock, so
// read-modify-write sequences such as appending a message are not lost.
// A nil patch commits nothing and returns the current record.
func (s *Store) UpdateWith(ctx context.Context, id, source string, fn func(current *types.PatientProfile) (*types.ProfilePatch, error)) (*types.PatientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if patch == nil || patch.Empty() {
		return current, nil
	}
	if patch.Stage != nil && !patch.Stage.Valid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidStage, "unknown patient stage",
			map[string]interface{}{"stage": *patch.Stage})
	}

	next := current.Clone()
	patch.Apply(next)
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveProfile(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to commit profile update: %w", err)
	}

	s.logger.ProfileChange(ctx, source, id, patch.Fields())
	for _, l := range s.listeners {
		l(ctx, source, current.Clone(), next.Clone())
	}
	return next.Clone(), nil
}
