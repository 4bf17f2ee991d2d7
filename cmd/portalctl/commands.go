package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/weighright/portal/internal/auth"
	"github.com/weighright/portal/internal/content"
	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/eligibility"
	"github.com/weighright/portal/internal/portal"
	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/internal/profile"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/database"
	"github.com/weighright/portal/pkg/encryption"
	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

func newBMICmd() *cobra.Command {
	var height, weight, ethnicity string
	cmd := &cobra.Command{
		Use:   "bmi",
		Short: "Check BMI eligibility",
		Long:  `Applies the ethnicity-adjusted BMI threshold to a height in cm and weight in kg.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := eligibility.Assess(height, weight, ethnicity)
			if a.BMI == 0 {
				return fmt.Errorf("height and weight must be positive numbers")
			}
			verdict := "not eligible"
			if a.Eligible {
				verdict = "eligible"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BMI %.1f (threshold %.1f): %s\n", a.BMI, a.Threshold, verdict)
			return nil
		},
	}
	cmd.Flags().StringVar(&height, "height", "", "height in cm")
	cmd.Flags().StringVar(&weight, "weight", "", "weight in kg")
	cmd.Flags().StringVar(&ethnicity, "ethnicity", "", "ethnic background as asked in the wizard")
	_ = cmd.MarkFlagRequired("height")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var med, dose, patientType, locale string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a medication strength",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pricing.ParseMedication(med)
			if err != nil {
				return err
			}
			f, err := pricing.NewFormatter(locale)
			if err != nil {
				return err
			}
			q, err := f.Quote(m, dose, types.PatientType(patientType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s per month\n", q.Medication, q.Dose, q.Display)
			return nil
		},
	}
	cmd.Flags().StringVar(&med, "med", "", "Mounjaro or Wegovy")
	cmd.Flags().StringVar(&dose, "dose", "", "strength, e.g. 7.5mg")
	cmd.Flags().StringVar(&patientType, "type", "", "NEW or EXISTING")
	cmd.Flags().StringVar(&locale, "locale", "en-GB", "display locale")
	_ = cmd.MarkFlagRequired("med")
	_ = cmd.MarkFlagRequired("dose")
	return cmd
}

func newProjectCmd() *cobra.Command {
	var (
		weight float64
		med    string
		unit   string
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Estimate weight loss on a medication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pricing.Project(pricing.ProjectionRequest{
				WeightKg:   weight,
				Medication: med,
				Unit:       pricing.Unit(unit),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: start %s%s, lose %s%s, reach %s%s\n",
				p.Medication, p.Start, p.Unit, p.Lost, p.Unit, p.Final, p.Unit)
			return nil
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 95, "starting weight in kg")
	cmd.Flags().StringVar(&med, "med", "mounjaro", "mounjaro or wegovy")
	cmd.Flags().StringVar(&unit, "unit", "kg", "kg or st")
	return cmd
}

func newHashPINCmd() *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "hash-pin",
		Short: "Hash a clinician PIN for auth.admin_pin_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPIN(pin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "the PIN to hash")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Generate a key for database.document_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		out       string
		useConfig bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the patient directory to an xlsx file",
		Long:  `Exports the directory queue. By default the seeded demo records are used; --config reads the configured store.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if useConfig {
				loaded, err := config.Load()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			rows, err := directoryRows(cmd.Context(), cfg, logger.NewWithOutput(cfg.LogLevel, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := portal.WriteDirectory(w, rows); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d patients to %s\n", len(rows), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "directory.xlsx", "output file, - for stdout")
	cmd.Flags().BoolVar(&useConfig, "config", false, "read records from the configured database")
	return cmd
}

// directoryRows reads the directory queue from the configured store, seeding memory stores from the catalog
func directoryRows(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]dashboard.PatientRow, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog, err := content.Load()
	if err != nil {
		return nil, err
	}
	formatter, err := pricing.NewFormatter(cfg.Portal.Locale)
	if err != nil {
		return nil, err
	}

	var repo interfaces.ProfileRepository
	if cfg.Database.Driver == "memory" {
		repo = profile.NewMemoryRepository()
	} else {
		db, err := database.NewConnection(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		opts, err := profile.SQLOptionsFor(&cfg.Database)
		if err != nil {
			return nil, err
		}
		repo = profile.NewSQLRepository(db, log, opts...)
	}

	store := profile.NewStore(repo, log)
	if cfg.Database.Driver == "memory" {
		if _, err := store.Seed(ctx, catalog.Patients); err != nil {
			return nil, err
		}
	}
	admin := dashboard.NewAdmin(store, catalog.Enrichment, cfg.Portal.DemoPatientID, formatter)
	return admin.Rows(ctx, dashboard.QueueDirectory)
}
