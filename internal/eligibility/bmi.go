package eligibility

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Ethnicity that uses the higher BMI threshold
const EthnicityWhite = "White"

const (
	ThresholdWhite = 30.0
	ThresholdOther = 27.5
)

// Verdict is the cached outcome of the eligibility rule
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictEligible
	VerdictNotEligible
)

// String implements fmt.Stringer
func (v Verdict) String() string {
	switch v {
	case VerdictEligible:
		return "eligible"
	case VerdictNotEligible:
		return "not_eligible"
	}
	return "unknown"
}

// MarshalJSON renders the verdict as true, false or null
func (v Verdict) MarshalJSON() ([]byte, error) {
	switch v {
	case VerdictEligible:
		return []byte("true"), nil
	case VerdictNotEligible:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts true, false or null
func (v *Verdict) UnmarshalJSON(b []byte) error {
	var flag *bool
	if err := json.Unmarshal(b, &flag); err != nil {
		return err
	}
	*v = VerdictFromBool(flag)
	return nil
}

// VerdictFromBool maps a nullable flag onto the tri-state
func VerdictFromBool(flag *bool) Verdict {
	switch {
	case flag == nil:
		return VerdictUnknown
	case *flag:
		return VerdictEligible
	}
	return VerdictNotEligible
}

// BMI returns weight / height(m)² rounded to one decimal place, or 0 when
// either measurement is missing or not positive.
func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 || math.IsNaN(heightCm) || math.IsNaN(weightKg) {
		return 0
	}
	h := heightCm / 100
	return math.Round(weightKg/(h*h)*10) / 10
}

// Threshold returns the minimum BMI for the given self-reported ethnicity
func Threshold(ethnicity string) float64 {
	if ethnicity == EthnicityWhite {
		return ThresholdWhite
	}
	return ThresholdOther
}

// Eligible applies the threshold to an already rounded BMI
func Eligible(bmi float64, ethnicity string) bool {
	return bmi >= Threshold(ethnicity)
}

// Assessment is the full result of one eligibility check
type Assessment struct {
	BMI       float64 `json:"bmi"`
	Threshold float64 `json:"threshold"`
	Eligible  bool    `json:"eligible"`
}

// Assess parses the raw wizard measurements and applies the rule
func Assess(height, weight, ethnicity string) Assessment {
	bmi := BMI(parseMeasurement(height), parseMeasurement(weight))
	return Assessment{
		BMI:       bmi,
		Threshold: Threshold(ethnicity),
		Eligible:  Eligible(bmi, ethnicity),
	}
}

func parseMeasurement(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
