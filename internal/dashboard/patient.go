// Package dashboard derives the patient and clinician views from profile records.
package dashboard

import (
	"math"
	"strings"

	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/pkg/types"
)

// JourneySteps are the labels of the patient stepper, in order
var JourneySteps = []string{"Profile", "Clinical Review", "Payment", "Dispatch"}

// DischargedBanner is shown under the stepper once a patient is discharged
const DischargedBanner = "Application Discharged. Please check your inbox or contact support."

// StepState is how a single stepper node renders
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepUpcoming  StepState = "upcoming"
)

// StepperStep is one node of the journey stepper
type StepperStep struct {
	Number int       `json:"number"`
	Label  string    `json:"label"`
	State  StepState `json:"state"`
}

// Stepper is the progress bar shown to patients who are not yet active
type Stepper struct {
	Index            int           `json:"index"`
	ConnectorPercent float64       `json:"connectorPercent"`
	Steps            []StepperStep `json:"steps"`
	Banner           string        `json:"banner,omitempty"`
}

// StatusCard is the headline card of the pre-treatment dashboard
type StatusCard struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Highlight bool   `json:"highlight"`
	CanPay    bool   `json:"canPay"`
}

// Delivery is the delivery tile of the active dashboard
type Delivery struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Tone   string `json:"tone"`
}

// PatientView is everything the patient dashboard renders
type PatientView struct {
	Profile       *types.PatientProfile `json:"profile"`
	FirstName     string                `json:"firstName"`
	Active        bool                  `json:"active"`
	Stepper       *Stepper              `json:"stepper,omitempty"`
	Status        *StatusCard           `json:"status,omitempty"`
	Delivery      *Delivery             `json:"delivery,omitempty"`
	Price         int                   `json:"price"`
	PriceDisplay  string                `json:"priceDisplay"`
	WeightLostKg  float64               `json:"weightLostKg"`
	CanSubmit     bool                  `json:"canSubmit"`
	OverviewAlert bool                  `json:"overviewAlert"`
	UnreadInbox   bool                  `json:"unreadInbox"`
}

// StageIndex maps a stage to its stepper position. Discharged patients stop at review.
func StageIndex(stage types.PatientStage) int {
	switch stage {
	case types.StageReview, types.StageDischarged:
		return 1
	case types.StagePayment:
		return 2
	case types.StageActive:
		return 3
	}
	return 0
}

// NewStepper builds the stepper for a stage
func NewStepper(stage types.PatientStage) *Stepper {
	idx := StageIndex(stage)
	s := &Stepper{
		Index:            idx,
		ConnectorPercent: math.Min(float64(idx)/float64(len(JourneySteps)-1)*100, 100),
		Steps:            make([]StepperStep, len(JourneySteps)),
	}
	for i, label := range JourneySteps {
		state := StepUpcoming
		switch {
		case i < idx:
			state = StepCompleted
		case i == idx:
			state = StepCurrent
		}
		s.Steps[i] = StepperStep{Number: i + 1, Label: label, State: state}
	}
	if stage == types.StageDischarged {
		s.Banner = DischargedBanner
	}
	return s
}

// NewStatusCard describes what a pre-treatment patient needs to do next
func NewStatusCard(stage types.PatientStage) *StatusCard {
	switch stage {
	case types.StageNew:
		return &StatusCard{
			Title: "Action Required",
			Body:  "Please upload your safety photos to complete your profile.",
		}
	case types.StageReview:
		return &StatusCard{
			Title:     "In Clinical Review",
			Body:      "Our clinicians are reviewing your application details and photos.",
			Highlight: true,
		}
	}
	return &StatusCard{
		Title:     "Payment Required",
		Body:      "Your application has been approved. Please complete payment to initiate dispatch.",
		Highlight: stage == types.StagePayment,
		CanPay:    stage == types.StagePayment,
	}
}

// DeliveryStatus labels the delivery tile. Checks run in priority order.
func DeliveryStatus(p *types.PatientProfile) *Delivery {
	switch {
	case p.DispatchStatus == types.DispatchDispatched:
		return &Delivery{Label: "On Way", Detail: "Arrives tomorrow", Tone: "success"}
	case p.PaymentStatus == types.PaymentDue:
		return &Delivery{Label: "Payment Due", Detail: "Pending checks", Tone: "warning"}
	case p.Alerts.WeightDue:
		return &Delivery{Label: "Action Needed", Detail: "Pending checks", Tone: "warning"}
	}
	return &Delivery{Label: "Preparing", Detail: "Pending checks", Tone: "neutral"}
}

// FirstName is the greeting name
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// NewPatientView derives the patient dashboard. An unpriced plan is an error.
func NewPatientView(p *types.PatientProfile, f *pricing.Formatter) (*PatientView, error) {
	price, err := pricing.Price(p.Plan.Med, p.Plan.Dose)
	if err != nil {
		return nil, err
	}

	v := &PatientView{
		Profile:       p,
		FirstName:     FirstName(p.Name),
		Active:        p.Stage == types.StageActive,
		Price:         price,
		PriceDisplay:  f.Pounds(price),
		WeightLostKg:  math.Round((p.WeightHistory.Start-p.WeightHistory.Current)*10) / 10,
		CanSubmit:     p.Stage == types.StageNew && p.Photos.Front && p.Photos.Side,
		OverviewAlert: p.Stage == types.StageNew,
	}
	for _, m := range p.Messages {
		if !m.Read && m.Sender != types.SenderPatient {
			v.UnreadInbox = true
			break
		}
	}

	if v.Active {
		v.Delivery = DeliveryStatus(p)
	} else {
		v.Stepper = NewStepper(p.Stage)
		v.Status = NewStatusCard(p.Stage)
	}
	return v, nil
}
