package types

// FaqItem is one entry of the landing page FAQ accordion
type FaqItem struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Testimonial is one story in the landing page carousel
type Testimonial struct {
	Name  string `json:"name" yaml:"name"`
	Quote string `json:"quote" yaml:"quote"`
	Loss  string `json:"loss" yaml:"loss"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// Plan is a pricing card on the landing page
type Plan struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Medication  Medication `json:"medication" yaml:"medication"`
	Description string     `json:"description" yaml:"description"`
	Price       int        `json:"price" yaml:"price"`
	Features    []string   `json:"features" yaml:"features"`
	Strengths   []string   `json:"strengths" yaml:"strengths"`
}

// PatientType toggles the pricing cards between new and switching patients
type PatientType string

const (
	PatientTypeNew      PatientType = "NEW"
	PatientTypeExisting PatientType = "EXISTING"
)
