package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/database"
	"github.com/weighright/portal/pkg/encryption"
	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// SQLRepository persists profiles as JSON documents in patient_profiles and
// the clinical team in clinicians. Works against sqlite and postgres.
type SQLRepository struct {
	db     *database.DB
	logger *logger.Logger
	sealer *encryption.Sealer
}

// SQLOption configures a SQLRepository
type SQLOption func(*SQLRepository)

// WithSealer encrypts profile documents at rest. Documents written in clear
// before the key was configured are still readable.
func WithSealer(s *encryption.Sealer) SQLOption {
	return func(r *SQLRepository) { r.sealer = s }
}

var (
	_ interfaces.ProfileRepository   = (*SQLRepository)(nil)
	_ interfaces.ClinicianRepository = (*SQLRepository)(nil)
)

// SQLOptionsFor returns the repository options implied by the database config
func SQLOptionsFor(cfg *config.DatabaseConfig) ([]SQLOption, error) {
	if cfg.DocumentKey == "" {
		return nil, nil
	}
	sealer, err := encryption.NewSealer(cfg.DocumentKey)
	if err != nil {
		return nil, err
	}
	return []SQLOption{WithSealer(sealer)}, nil
}

// NewSQLRepository creates a repository over an open connection
func NewSQLRepository(db *database.DB, log *logger.Logger, opts ...SQLOption) *SQLRepository {
	r := &SQLRepository{
		db:     db,
		logger: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetProfile retrieves a profile by id
func (r *SQLRepository) GetProfile(ctx context.Context, id string) (*types.PatientProfile, error) {
	query := r.db.Rebind(`SELECT document FROM patient_profiles WHERE id = ?`)

	var doc string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "patient not found")
	}
	if err != nil {
		r.logger.WithError(err).WithField("patient_id", id).Error("Failed to get patient profile")
		return nil, fmt.Errorf("failed to get patient profile: %w", err)
	}
	return r.decodeProfile(id, doc)
}

// ListProfiles returns profiles in insertion order, optionally narrowed by stage
func (r *SQLRepository) ListProfiles(ctx context.Context, filters *types.ProfileFilters) ([]*types.PatientProfile, error) {
	query := `SELECT id, document FROM patient_profiles`
	var args []interface{}

	if filters != nil && len(filters.Stages) > 0 {
		marks := make([]string, len(filters.Stages))
		for i, s := range filters.Stages {
			marks[i] = "?"
			args = append(args, string(s))
		}
		query += ` WHERE stage IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list patient profiles")
		return nil, fmt.Errorf("failed to list patient profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*types.PatientProfile
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan patient profile: %w", err)
		}
		p, err := r.decodeProfile(id, doc)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patient profiles: %w", err)
	}
	return profiles, nil
}

// SaveProfile upserts a profile. The insertion position is kept on update.
func (r *SQLRepository) SaveProfile(ctx context.Context, profile *types.PatientProfile) error {
	if profile == nil || profile.ID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "profile id is required", nil)
	}

	doc, err := r.encodeProfile(profile)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO patient_profiles (id, seq, stage, payment_status, document, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM patient_profiles), ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			stage = excluded.stage,
			payment_status = excluded.payment_status,
			document = excluded.document,
			updated_at = excluded.updated_at`)

	_, err = r.db.ExecContext(ctx, query,
		profile.ID,
		string(profile.Stage),
		string(profile.PaymentStatus),
		doc,
		profile.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.WithError(err).WithField("patient_id", profile.ID).Error("Failed to save patient profile")
		return fmt.Errorf("failed to save patient profile: %w", err)
	}
	return nil
}

// Ping checks the underlying connection
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListClinicians returns the clinical team ordered by id
func (r *SQLRepository) ListClinicians(ctx context.Context) ([]*types.Clinician, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, role, email, status FROM clinicians ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinicians: %w", err)
	}
	defer rows.Close()

	var team []*types.Clinician
	for rows.Next() {
		c := &types.Clinician{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Role, &c.Email, &c.Status); err != nil {
			return nil, fmt.Errorf("failed to scan clinician: %w", err)
		}
		team = append(team, c)
	}
	return team, rows.Err()
}

// CreateClinician inserts a team member and returns it with its assigned id
func (r *SQLRepository) CreateClinician(ctx context.Context, clinician *types.Clinician) (*types.Clinician, error) {
	query := r.db.Rebind(`
		INSERT INTO clinicians (name, role, email, status)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	c := *clinician
	err := r.db.QueryRowContext(ctx, query, c.Name, c.Role, c.Email, string(c.Status)).Scan(&c.ID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to create clinician")
		return nil, fmt.Errorf("failed to create clinician: %w", err)
	}
	return &c, nil
}

// DeleteClinician removes a team member by id
func (r *SQLRepository) DeleteClinician(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM clinicians WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete clinician: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete clinician: %w", err)
	}
	if n == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "clinician not found")
	}
	return nil
}

func (r *SQLRepository) encodeProfile(profile *types.PatientProfile) (string, error) {
	doc, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode patient profile: %w", err)
	}
	if r.sealer == nil {
		return string(doc), nil
	}
	sealed, err := r.sealer.Seal(profile.ID, doc)
	if err != nil {
		return "", fmt.Errorf("failed to seal patient profile: %w", err)
	}
	return sealed, nil
}

func (r *SQLRepository) decodeProfile(id, doc string) (*types.PatientProfile, error) {
	raw := []byte(doc)
	if encryption.IsSealed(doc) {
		if r.sealer == nil {
			return nil, fmt.Errorf("patient profile %s is encrypted and no document key is configured", id)
		}
		plain, err := r.sealer.Open(id, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to open patient profile: %w", err)
		}
		raw = plain
	}

	var p types.PatientProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode patient profile: %w", err)
	}
	return &p, nil
}
