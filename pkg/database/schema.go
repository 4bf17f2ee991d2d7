package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the patient profile and clinician tables
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	clinicians := createCliniciansTableSQLite
	if db.dialect == DialectPostgres {
		clinicians = createCliniciansTablePostgres
	}

	statements := []string{
		createProfilesTable,
		createProfilesIndexes,
		clinicians,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements. Profiles are stored as a JSON document with the
// queue-relevant columns lifted out for filtering.
const (
	createProfilesTable = `
		CREATE TABLE IF NOT EXISTS patient_profiles (
			id VARCHAR(32) PRIMARY KEY,
			seq INTEGER NOT NULL,
			stage VARCHAR(16) NOT NULL,
			payment_status VARCHAR(16) NOT NULL,
			document TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`

	createProfilesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_patient_profiles_stage ON patient_profiles(stage);`

	createCliniciansTableSQLite = `
		CREATE TABLE IF NOT EXISTS clinicians (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			email TEXT NOT NULL,
			status TEXT NOT NULL
		);`

	createCliniciansTablePostgres = `
		CREATE TABLE IF NOT EXISTS clinicians (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL
		);`
)
