// Package pricing holds the monthly price table per medication strength and
// the landing page weight-loss projection.
package pricing

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/weighright/portal/pkg/types"
)

// DosePrice is one strength and its monthly price in whole pounds
type DosePrice struct {
	Dose  string `json:"dose"`
	Price int    `json:"price"`
}

// MedicationPrices is the ordered strength list for one medication
type MedicationPrices struct {
	Medication types.Medication `json:"medication"`
	Currency   string           `json:"currency"`
	Doses      []DosePrice      `json:"doses"`
}

var table = []MedicationPrices{
	{
		Medication: types.MedicationMounjaro,
		Doses: []DosePrice{
			{"2.5mg", 219},
			{"5mg", 219},
			{"7.5mg", 229},
			{"10mg", 249},
			{"12.5mg", 269},
			{"15mg", 269},
		},
	},
	{
		Medication: types.MedicationWegovy,
		Doses: []DosePrice{
			{"0.25mg", 199},
			{"0.5mg", 199},
			{"1.0mg", 199},
			{"1.7mg", 249},
			{"2.4mg", 299},
		},
	},
}

// Currency every price is quoted in
var Currency = currency.GBP

// ParseMedication accepts a medication name in any case
func ParseMedication(raw string) (types.Medication, error) {
	for _, m := range table {
		if strings.EqualFold(string(m.Medication), strings.TrimSpace(raw)) {
			return m.Medication, nil
		}
	}
	return "", types.NewValidationError(types.ErrCodeInvalidInput, "unknown medication",
		map[string]interface{}{"medication": raw})
}

// Catalog returns a copy of the full price table
func Catalog() []MedicationPrices {
	out := make([]MedicationPrices, len(table))
	for i, m := range table {
		out[i] = MedicationPrices{
			Medication: m.Medication,
			Currency:   Currency.String(),
			Doses:      append([]DosePrice(nil), m.Doses...),
		}
	}
	return out
}

// Strengths lists the doses offered for med in ascending order
func Strengths(med types.Medication) []string {
	for _, m := range table {
		if m.Medication == med {
			out := make([]string, len(m.Doses))
			for i, d := range m.Doses {
				out[i] = d.Dose
			}
			return out
		}
	}
	return nil
}

// Price looks up the monthly price for a medication strength
func Price(med types.Medication, dose string) (int, error) {
	for _, m := range table {
		if m.Medication != med {
			continue
		}
		for _, d := range m.Doses {
			if d.Dose == dose {
				return d.Price, nil
			}
		}
	}
	return 0, types.NewNotFoundError(types.ErrCodeUnknownDose,
		fmt.Sprintf("no price for %s %s", med, dose))
}

// Formatter renders amounts for one locale
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a formatter for a BCP 47 locale such as en-GB
func NewFormatter(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), symbol: "£"}, nil
}

// Pounds renders a whole-pound amount, e.g. £1,249
func (f *Formatter) Pounds(amount int) string {
	return f.printer.Sprintf("%s%d", f.symbol, amount)
}

// PoundsPence renders an amount with two decimals, e.g. £219.00
func (f *Formatter) PoundsPence(amount float64) string {
	return f.printer.Sprintf("%s%.2f", f.symbol, amount)
}

// Number renders a plain number with locale grouping
func (f *Formatter) Number(v float64, decimals int) string {
	return f.printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// Quote is a priced strength as shown on a pricing card or dashboard
type Quote struct {
	Medication  types.Medication  `json:"medication"`
	Dose        string            `json:"dose"`
	Price       int               `json:"price"`
	Currency    string            `json:"currency"`
	Display     string            `json:"display"`
	PatientType types.PatientType `json:"patientType"`
	Strengths   []string          `json:"strengths"`
}

// Quote prices a strength. An empty patient type defaults to a new patient.
func (f *Formatter) Quote(med types.Medication, dose string, pt types.PatientType) (*Quote, error) {
	price, err := Price(med, dose)
	if err != nil {
		return nil, err
	}
	switch pt {
	case "":
		pt = types.PatientTypeNew
	case types.PatientTypeNew, types.PatientTypeExisting:
	default:
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "unknown patient type",
			map[string]interface{}{"type": pt})
	}
	return &Quote{
		Medication:  med,
		Dose:        dose,
		Price:       price,
		Currency:    Currency.String(),
		Display:     f.Pounds(price),
		PatientType: pt,
		Strengths:   Strengths(med),
	}, nil
}
