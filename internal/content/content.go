// Package content loads the site copy and demo records compiled into the binary.
package content

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/weighright/portal/pkg/types"
)

//go:embed content.yaml
var embedded []byte

// Enrichment holds the defaults shown to clinicians for a record that lacks them
type Enrichment struct {
	RiskLevel        types.RiskLevel            `yaml:"riskLevel"`
	StartDate        string                     `yaml:"startDate"`
	Consultation     []types.ConsultationRecord `yaml:"consultation"`
	Messages         []types.Message            `yaml:"messages"`
	PaymentHistory   []types.PaymentRecord      `yaml:"paymentHistory"`
	TreatmentHistory []types.TreatmentRecord    `yaml:"treatmentHistory"`
}

// Catalog is everything the portal serves that is authored rather than computed
type Catalog struct {
	FAQ          []types.FaqItem         `yaml:"faq"`
	Testimonials []types.Testimonial     `yaml:"testimonials"`
	Plans        []types.Plan            `yaml:"plans"`
	Team         []types.Clinician       `yaml:"team"`
	Enrichment   Enrichment              `yaml:"enrichment"`
	Patients     []*types.PatientProfile `yaml:"patients"`
}

// Load parses the embedded catalog. Each call returns an independent copy.
func Load() (*Catalog, error) {
	return Parse(embedded)
}

// Parse decodes and validates a catalog document
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode content catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid content catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Patients) == 0 {
		return fmt.Errorf("at least one patient is required")
	}
	seen := make(map[string]bool, len(c.Patients))
	for _, p := range c.Patients {
		if p.ID == "" {
			return fmt.Errorf("patient %q has no id", p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate patient id %q", p.ID)
		}
		seen[p.ID] = true
		if !p.Stage.Valid() {
			return fmt.Errorf("patient %s has invalid stage %q", p.ID, p.Stage)
		}
	}
	for _, m := range c.Team {
		if m.Name == "" || m.Email == "" {
			return fmt.Errorf("team member %d needs a name and email", m.ID)
		}
	}
	return nil
}

// DemoPatient is the record behind the patient dashboard
func (c *Catalog) DemoPatient() *types.PatientProfile {
	return c.Patients[0]
}

// Enrich fills clinician-facing fields the record lacks. The input is not modified.
func (e *Enrichment) Enrich(p *types.PatientProfile) *types.PatientProfile {
	out := p.Clone()
	if out.RiskLevel == "" {
		out.RiskLevel = e.RiskLevel
	}
	if out.Consultation == nil {
		out.Consultation = append([]types.ConsultationRecord(nil), e.Consultation...)
	}
	if out.Notes == nil {
		out.Notes = []types.ClinicalNote{}
	}
	if out.Messages == nil {
		out.Messages = append([]types.Message(nil), e.Messages...)
	}
	if out.PaymentHistory == nil {
		out.PaymentHistory = append([]types.PaymentRecord(nil), e.PaymentHistory...)
	}
	if out.TreatmentHistory == nil {
		out.TreatmentHistory = append([]types.TreatmentRecord(nil), e.TreatmentHistory...)
	}
	if out.StartDate == "" {
		out.StartDate = e.StartDate
	}
	return out
}
