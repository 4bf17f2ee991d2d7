package pricing

import (
	"math"
	"strconv"

	"github.com/weighright/portal/pkg/types"
)

// Slider bounds of the landing page calculator, in kilograms
const (
	MinWeightKg = 60.0
	MaxWeightKg = 180.0
	// KgToStone converts kilograms to stone
	KgToStone = 0.157473
)

// Unit is the display unit of a projection
type Unit string

const (
	UnitKg    Unit = "kg"
	UnitStone Unit = "st"
)

// LossFraction is the expected share of body weight lost on each medication
func LossFraction(med types.Medication) float64 {
	if med == types.MedicationMounjaro {
		return 0.21
	}
	return 0.15
}

// Projection is the calculator's estimate for one starting weight
type Projection struct {
	Medication    types.Medication `json:"medication"`
	Unit          Unit             `json:"unit"`
	WeightKg      float64          `json:"weightKg"`
	LossFraction  float64          `json:"lossFraction"`
	LostKg        float64          `json:"lostKg"`
	FinalKg       float64          `json:"finalKg"`
	Start         string           `json:"start"`
	Lost          string           `json:"lost"`
	Final         string           `json:"final"`
	SliderPercent float64          `json:"sliderPercent"`
}

// ProjectionRequest is the calculator form
type ProjectionRequest struct {
	WeightKg   float64 `json:"weightKg"`
	Medication string  `json:"medication"`
	Unit       Unit    `json:"unit"`
}

// Project estimates weight loss. Weights outside the slider range are clamped.
func Project(req ProjectionRequest) (*Projection, error) {
	med, err := ParseMedication(req.Medication)
	if err != nil {
		return nil, err
	}
	unit := req.Unit
	switch unit {
	case "":
		unit = UnitKg
	case UnitKg, UnitStone:
	default:
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "unit must be kg or st",
			map[string]interface{}{"unit": req.Unit})
	}
	if math.IsNaN(req.WeightKg) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "weight is required", nil)
	}

	weight := math.Min(math.Max(req.WeightKg, MinWeightKg), MaxWeightKg)
	fraction := LossFraction(med)
	lost := weight * fraction
	final := weight - lost

	return &Projection{
		Medication:    med,
		Unit:          unit,
		WeightKg:      weight,
		LossFraction:  fraction,
		LostKg:        lost,
		FinalKg:       final,
		Start:         DisplayWeight(weight, unit),
		Lost:          DisplayWeight(lost, unit),
		Final:         DisplayWeight(final, unit),
		SliderPercent: (weight - MinWeightKg) / (MaxWeightKg - MinWeightKg) * 100,
	}, nil
}

// DisplayWeight renders kilograms as a whole number or stone to one decimal
func DisplayWeight(kg float64, unit Unit) string {
	if unit == UnitStone {
		return strconv.FormatFloat(kg*KgToStone, 'f', 1, 64)
	}
	return strconv.FormatFloat(math.Round(kg), 'f', 0, 64)
}
