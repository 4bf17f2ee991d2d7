package types

import "time"

// PatientStage is the patient's position in the onboarding/treatment funnel
type PatientStage string

const (
	StageNew        PatientStage = "new"
	StageReview     PatientStage = "review"
	StagePayment    PatientStage = "payment"
	StageActive     PatientStage = "active"
	StageDischarged PatientStage = "discharged"
)

// Valid reports whether the stage is one of the known funnel stages
func (s PatientStage) Valid() bool {
	switch s {
	case StageNew, StageReview, StagePayment, StageActive, StageDischarged:
		return true
	}
	return false
}

// Medication represents the GLP-1 products offered
type Medication string

const (
	MedicationMounjaro Medication = "Mounjaro"
	MedicationWegovy   Medication = "Wegovy"
)

// PaymentStatus represents the billing state of a patient
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentDue     PaymentStatus = "due"
	PaymentOverdue PaymentStatus = "overdue"
)

// DispatchStatus represents the fulfillment state of the current order
type DispatchStatus string

const (
	DispatchPreparing  DispatchStatus = "preparing"
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchDelivered  DispatchStatus = "delivered"
)

// RiskLevel is used both for patient risk and for consultation answer flags
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MessageSender identifies who authored a message in the patient thread
type MessageSender string

const (
	SenderPatient MessageSender = "patient"
	SenderAdmin   MessageSender = "admin"
	SenderSystem  MessageSender = "system"
)

// TreatmentPlan is the medication and dose a patient is prescribed
type TreatmentPlan struct {
	Med  Medication `json:"med" yaml:"med"`
	Dose string     `json:"dose" yaml:"dose"`
}

// WeightHistory tracks the starting and latest weight in kilograms
type WeightHistory struct {
	Current    float64 `json:"current" yaml:"current"`
	Start      float64 `json:"start" yaml:"start"`
	LastLogged string  `json:"lastLogged" yaml:"lastLogged"`
}

// Photos holds the verification photo upload state
type Photos struct {
	Front bool `json:"front" yaml:"front"`
	Side  bool `json:"side" yaml:"side"`
}

// Alerts are flags raised and cleared by portal actions
type Alerts struct {
	WeightDue      bool `json:"weightDue" yaml:"weightDue"`
	PaymentOverdue bool `json:"paymentOverdue" yaml:"paymentOverdue"`
}

// Message is a single entry in the patient/clinic thread
type Message struct {
	ID        string        `json:"id" yaml:"id"`
	Sender    MessageSender `json:"sender" yaml:"sender"`
	Content   string        `json:"content" yaml:"content"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Read      bool          `json:"read" yaml:"read"`
}

// ConsultationRecord is a questionnaire answer as reviewed by a clinician
type ConsultationRecord struct {
	ID       string    `json:"id" yaml:"id"`
	Question string    `json:"question" yaml:"question"`
	Answer   string    `json:"answer" yaml:"answer"`
	Flag     RiskLevel `json:"flag" yaml:"flag"`
}

// ClinicalNote is a free-text note written by a clinician
type ClinicalNote struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// PaymentRecordStatus represents the outcome of a single payment
type PaymentRecordStatus string

const (
	PaymentRecordPaid     PaymentRecordStatus = "paid"
	PaymentRecordPending  PaymentRecordStatus = "pending"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

// PaymentRecord is one entry of a patient's billing history
type PaymentRecord struct {
	ID     string              `json:"id" yaml:"id"`
	Date   string              `json:"date" yaml:"date"`
	Amount int                 `json:"amount" yaml:"amount"`
	Method string              `json:"method" yaml:"method"`
	Status PaymentRecordStatus `json:"status" yaml:"status"`
}

// TreatmentRecord is one month of a patient's treatment timeline
type TreatmentRecord struct {
	ID     string `json:"id" yaml:"id"`
	Month  int    `json:"month" yaml:"month"`
	Date   string `json:"date" yaml:"date"`
	Dose   string `json:"dose" yaml:"dose"`
	Status string `json:"status" yaml:"status"`
}

// PatientProfile is the single record shared by the patient and clinician views
type PatientProfile struct {
	ID               string               `json:"id" yaml:"id"`
	Name             string               `json:"name" yaml:"name"`
	Email            string               `json:"email" yaml:"email"`
	Stage            PatientStage         `json:"stage" yaml:"stage"`
	Plan             TreatmentPlan        `json:"plan" yaml:"plan"`
	WeightHistory    WeightHistory        `json:"weightHistory" yaml:"weightHistory"`
	Photos           Photos               `json:"photos" yaml:"photos"`
	PaymentStatus    PaymentStatus        `json:"paymentStatus" yaml:"paymentStatus"`
	NextDispatchDate string               `json:"nextDispatchDate" yaml:"nextDispatchDate"`
	DispatchStatus   DispatchStatus       `json:"dispatchStatus,omitempty" yaml:"dispatchStatus,omitempty"`
	StartDate        string               `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	Alerts           Alerts               `json:"alerts" yaml:"alerts"`
	RiskLevel        RiskLevel            `json:"riskLevel,omitempty" yaml:"riskLevel,omitempty"`
	Messages         []Message            `json:"messages,omitempty" yaml:"messages,omitempty"`
	Consultation     []ConsultationRecord `json:"consultation,omitempty" yaml:"consultation,omitempty"`
	Notes            []ClinicalNote       `json:"notes,omitempty" yaml:"notes,omitempty"`
	PaymentHistory   []PaymentRecord      `json:"paymentHistory,omitempty" yaml:"paymentHistory,omitempty"`
	TreatmentHistory []TreatmentRecord    `json:"treatmentHistory,omitempty" yaml:"treatmentHistory,omitempty"`
	UpdatedAt        time.Time            `json:"updatedAt" yaml:"-"`
}

// Clone returns a deep copy so callers never share slices with the store
func (p *PatientProfile) Clone() *PatientProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Messages = cloneSlice(p.Messages)
	c.Consultation = cloneSlice(p.Consultation)
	c.Notes = cloneSlice(p.Notes)
	c.PaymentHistory = cloneSlice(p.PaymentHistory)
	c.TreatmentHistory = cloneSlice(p.TreatmentHistory)
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// ProfilePatch is a partial update merged into a profile one level deep.
// A non-nil nested value replaces the whole nested object.
type ProfilePatch struct {
	Name             *string               `json:"name,omitempty"`
	Email            *string               `json:"email,omitempty"`
	Stage            *PatientStage         `json:"stage,omitempty"`
	Plan             *TreatmentPlan        `json:"plan,omitempty"`
	WeightHistory    *WeightHistory        `json:"weightHistory,omitempty"`
	Photos           *Photos               `json:"photos,omitempty"`
	PaymentStatus    *PaymentStatus        `json:"paymentStatus,omitempty"`
	NextDispatchDate *string               `json:"nextDispatchDate,omitempty"`
	DispatchStatus   *DispatchStatus       `json:"dispatchStatus,omitempty"`
	StartDate        *string               `json:"startDate,omitempty"`
	Alerts           *Alerts               `json:"alerts,omitempty"`
	RiskLevel        *RiskLevel            `json:"riskLevel,omitempty"`
	Messages         *[]Message            `json:"messages,omitempty"`
	Consultation     *[]ConsultationRecord `json:"consultation,omitempty"`
	Notes            *[]ClinicalNote       `json:"notes,omitempty"`
	PaymentHistory   *[]PaymentRecord      `json:"paymentHistory,omitempty"`
	TreatmentHistory *[]TreatmentRecord    `json:"treatmentHistory,omitempty"`
}

// Fields returns the names of the fields the patch sets, in declaration order
func (p *ProfilePatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Name != nil, "name")
	add(p.Email != nil, "email")
	add(p.Stage != nil, "stage")
	add(p.Plan != nil, "plan")
	add(p.WeightHistory != nil, "weightHistory")
	add(p.Photos != nil, "photos")
	add(p.PaymentStatus != nil, "paymentStatus")
	add(p.NextDispatchDate != nil, "nextDispatchDate")
	add(p.DispatchStatus != nil, "dispatchStatus")
	add(p.StartDate != nil, "startDate")
	add(p.Alerts != nil, "alerts")
	add(p.RiskLevel != nil, "riskLevel")
	add(p.Messages != nil, "messages")
	add(p.Consultation != nil, "consultation")
	add(p.Notes != nil, "notes")
	add(p.PaymentHistory != nil, "paymentHistory")
	add(p.TreatmentHistory != nil, "treatmentHistory")
	return fields
}

// Empty reports whether the patch sets nothing
func (p *ProfilePatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply merges the patch into the profile in place
func (p *ProfilePatch) Apply(profile *PatientProfile) {
	if p.Name != nil {
		profile.Name = *p.Name
	}
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.Stage != nil {
		profile.Stage = *p.Stage
	}
	if p.Plan != nil {
		profile.Plan = *p.Plan
	}
	if p.WeightHistory != nil {
		profile.WeightHistory = *p.WeightHistory
	}
	if p.Photos != nil {
		profile.Photos = *p.Photos
	}
	if p.PaymentStatus != nil {
		profile.PaymentStatus = *p.PaymentStatus
	}
	if p.NextDispatchDate != nil {
		profile.NextDispatchDate = *p.NextDispatchDate
	}
	if p.DispatchStatus != nil {
		profile.DispatchStatus = *p.DispatchStatus
	}
	if p.StartDate != nil {
		profile.StartDate = *p.StartDate
	}
	if p.Alerts != nil {
		profile.Alerts = *p.Alerts
	}
	if p.RiskLevel != nil {
		profile.RiskLevel = *p.RiskLevel
	}
	if p.Messages != nil {
		profile.Messages = cloneSlice(*p.Messages)
	}
	if p.Consultation != nil {
		profile.Consultation = cloneSlice(*p.Consultation)
	}
	if p.Notes != nil {
		profile.Notes = cloneSlice(*p.Notes)
	}
	if p.PaymentHistory != nil {
		profile.PaymentHistory = cloneSlice(*p.PaymentHistory)
	}
	if p.TreatmentHistory != nil {
		profile.TreatmentHistory = cloneSlice(*p.TreatmentHistory)
	}
}

// ProfileFilters narrows profile listings
type ProfileFilters struct {
	Stages []PatientStage `json:"stages,omitempty"`
}

// Matches reports whether the profile passes the filter
func (f *ProfileFilters) Matches(p *PatientProfile) bool {
	if f == nil || len(f.Stages) == 0 {
		return true
	}
	for _, s := range f.Stages {
		if p.Stage == s {
			return true
		}
	}
	return false
}
