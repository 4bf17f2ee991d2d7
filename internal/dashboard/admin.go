package dashboard

import (
	"context"

	"github.com/weighright/portal/internal/content"
	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/internal/profile"
	"github.com/weighright/portal/pkg/types"
)

// Queue names an admin patient list
type Queue string

const (
	QueueAll       Queue = "all"
	QueueReview    Queue = "review"
	QueueDirectory Queue = "directory"
	QueuePayments  Queue = "payments"
)

// Stages returns the stage filter behind a queue
func (q Queue) Stages() ([]types.PatientStage, error) {
	switch q {
	case QueueAll, "":
		return nil, nil
	case QueueReview:
		return []types.PatientStage{types.StageReview, types.StageNew}, nil
	case QueueDirectory:
		return []types.PatientStage{types.StageActive, types.StagePayment, types.StageDischarged}, nil
	case QueuePayments:
		return []types.PatientStage{types.StageActive, types.StagePayment}, nil
	}
	return nil, types.NewValidationError(types.ErrCodeInvalidInput, "unknown queue",
		map[string]interface{}{"queue": q})
}

// Payment row actions
const (
	ActionManagePayment = "Manage Payment"
	ActionDispatch      = "Dispatch"
	ActionCompleted     = "Completed"
)

// PaymentAction is the next step offered on a payments row
func PaymentAction(p *types.PatientProfile) string {
	switch {
	case p.PaymentStatus != types.PaymentPaid:
		return ActionManagePayment
	case p.DispatchStatus != types.DispatchDispatched:
		return ActionDispatch
	}
	return ActionCompleted
}

// PatientRow is one line of an admin queue
type PatientRow struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Stage          types.PatientStage   `json:"stage"`
	Plan           types.TreatmentPlan  `json:"plan"`
	PaymentStatus  types.PaymentStatus  `json:"paymentStatus"`
	DispatchStatus types.DispatchStatus `json:"dispatchStatus,omitempty"`
	Alerts         types.Alerts         `json:"alerts"`
	LastMessage    string               `json:"lastMessage"`
	PaymentAction  string               `json:"paymentAction"`
}

// Overview holds the admin home counters
type Overview struct {
	ActivePatients      int    `json:"activePatients"`
	PendingReview       int    `json:"pendingReview"`
	SafetyAlerts        int    `json:"safetyAlerts"`
	PaymentsOutstanding int    `json:"paymentsOutstanding"`
	Revenue             int    `json:"revenue"`
	RevenueDisplay      string `json:"revenueDisplay"`
}

// Admin reads the shared store on behalf of the clinician dashboard
type Admin struct {
	store      *profile.Store
	enrichment content.Enrichment
	demoID     string
	formatter  *pricing.Formatter
}

// NewAdmin creates the clinician read model. Records with id demoID are
// enriched with catalog defaults when read.
func NewAdmin(store *profile.Store, enrichment content.Enrichment, demoID string, f *pricing.Formatter) *Admin {
	return &Admin{
		store:      store,
		enrichment: enrichment,
		demoID:     demoID,
		formatter:  f,
	}
}

// Patient returns one record as a clinician sees it
func (a *Admin) Patient(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.enrich(p), nil
}

// Patients returns the records in a queue
func (a *Admin) Patients(ctx context.Context, q Queue) ([]*types.PatientProfile, error) {
	stages, err := q.Stages()
	if err != nil {
		return nil, err
	}
	list, err := a.store.List(ctx, &types.ProfileFilters{Stages: stages})
	if err != nil {
		return nil, err
	}
	for i, p := range list {
		list[i] = a.enrich(p)
	}
	return list, nil
}

// Rows returns a queue as table rows
func (a *Admin) Rows(ctx context.Context, q Queue) ([]PatientRow, error) {
	list, err := a.Patients(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([]PatientRow, len(list))
	for i, p := range list {
		rows[i] = NewPatientRow(p)
	}
	return rows, nil
}

// NewPatientRow summarises a record for a queue table
func NewPatientRow(p *types.PatientProfile) PatientRow {
	last := "No messages yet."
	if n := len(p.Messages); n > 0 {
		last = p.Messages[n-1].Content
	}
	return PatientRow{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		Stage:          p.Stage,
		Plan:           p.Plan,
		PaymentStatus:  p.PaymentStatus,
		DispatchStatus: p.DispatchStatus,
		Alerts:         p.Alerts,
		LastMessage:    last,
		PaymentAction:  PaymentAction(p),
	}
}

// Overview computes the admin home counters. Revenue is the plan price of every paid patient.
func (a *Admin) Overview(ctx context.Context) (*Overview, error) {
	all, err := a.store.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	review, _ := QueueReview.Stages()
	directory, _ := QueueDirectory.Stages()
	payments, _ := QueuePayments.Stages()

	o := &Overview{}
	for _, p := range all {
		if hasStage(review, p.Stage) {
			o.PendingReview++
		}
		if hasStage(directory, p.Stage) {
			o.ActivePatients++
		}
		if hasStage(payments, p.Stage) && p.PaymentStatus != types.PaymentPaid {
			o.PaymentsOutstanding++
		}
		if p.Alerts.WeightDue || p.Alerts.PaymentOverdue {
			o.SafetyAlerts++
		}
		if p.PaymentStatus == types.PaymentPaid {
			if price, err := pricing.Price(p.Plan.Med, p.Plan.Dose); err == nil {
				o.Revenue += price
			}
		}
	}
	o.RevenueDisplay = a.formatter.Pounds(o.Revenue)
	return o, nil
}

// Thread is the message thread clinicians are shown for p
func (a *Admin) Thread(p *types.PatientProfile) []types.Message {
	return a.enrich(p).Messages
}

func (a *Admin) enrich(p *types.PatientProfile) *types.PatientProfile {
	if p.ID != a.demoID {
		return p
	}
	return a.enrichment.Enrich(p)
}

func hasStage(stages []types.PatientStage, s types.PatientStage) bool {
	for _, st := range stages {
		if st == s {
			return true
		}
	}
	return false
}
