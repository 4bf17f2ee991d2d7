package eligibility

import (
	"fmt"
	"strings"
)

// StepID names a wizard step
type StepID string

const (
	StepIntro            StepID = "intro"
	StepGender           StepID = "gender"
	StepMeasurements     StepID = "measurements"
	StepEthnicity        StepID = "ethnicity"
	StepSafety           StepID = "safety"
	StepTreatmentHistory StepID = "treatment_history"
	StepCurrentDosage    StepID = "current_dosage"
	StepPreviousUsage    StepID = "previous_usage"
	StepPreferredMed     StepID = "preferred_med"
	StepOtherMeds        StepID = "other_meds"
	StepDiabetes         StepID = "diabetes"
	StepRemission        StepID = "remission"
	StepGIConditions     StepID = "gi_conditions"
	StepGIWarning        StepID = "gi_warning"
	StepHeart            StepID = "heart"
	StepThyroid          StepID = "thyroid"
	StepGallbladder      StepID = "gallbladder"
	StepOtherConditions  StepID = "other_conditions"
	StepMentalHealth     StepID = "mental_health"
	StepMHStatus         StepID = "mh_status"
	StepMHAdmission      StepID = "mh_admission"
	StepBariatric        StepID = "bariatric"
	StepMedicationCheck  StepID = "medication_check"
	StepPregnancy        StepID = "pregnancy"
	StepGP               StepID = "gp"
	StepProcessing       StepID = "processing"
	StepAccount          StepID = "account"
)

// Answer fields
const (
	FieldGender                 = "gender"
	FieldHeight                 = "height"
	FieldWeight                 = "weight"
	FieldEthnicity              = "ethnicity"
	FieldGLP1Usage              = "glp1Usage"
	FieldGLP1Dose               = "glp1Dose"
	FieldGLP1StopDate           = "glp1StopDate"
	FieldPreferredMed           = "preferredMed"
	FieldOtherWeightMeds        = "otherWeightMeds"
	FieldDiabetes               = "diabetes"
	FieldDiabetesRemissionTime  = "diabetesRemissionTime"
	FieldGIConditions           = "giConditions"
	FieldCVEvents               = "cvEvents"
	FieldThyroid                = "thyroid"
	FieldGallbladder            = "gallbladder"
	FieldGeneralConditions      = "generalConditions"
	FieldMentalHealthConditions = "mentalHealthConditions"
	FieldMHStatus               = "mhStatus"
	FieldMHCrisis               = "mhCrisis"
	FieldBariatricSurgery       = "bariatricSurgery"
	FieldMedicationInteractions = "medicationInteractions"
	FieldPregnancy              = "pregnancy"
	FieldGPInfo                 = "gpInfo"
)

// StepKind decides how a step collects input and when it may advance
type StepKind string

const (
	KindInfo         StepKind = "info"
	KindSingle       StepKind = "single"
	KindMulti        StepKind = "multi"
	KindMeasurements StepKind = "measurements"
	KindDate         StepKind = "date"
	KindText         StepKind = "text"
	KindAccount      StepKind = "account"
)

// Option is one selectable answer
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Guard is a pure predicate over the answers collected so far
type Guard func(a *Answers) bool

// Edge leads to another step when its guard holds. A nil guard always holds.
type Edge struct {
	To   StepID
	When Guard
}

// Step is a node of the wizard graph
type Step struct {
	ID       StepID   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Body     string   `json:"body,omitempty"`
	Kind     StepKind `json:"kind"`
	Field    string   `json:"field,omitempty"`
	Options  []Option `json:"options,omitempty"`
	// ChecksEligibility runs the BMI rule when the step's answer is recorded
	ChecksEligibility bool   `json:"-"`
	Edges             []Edge `json:"-"`
}

// Fields lists the answer keys this step writes
func (s *Step) Fields() []string {
	switch s.Kind {
	case KindMeasurements:
		return []string{FieldHeight, FieldWeight}
	case KindInfo, KindAccount:
		return nil
	}
	return []string{s.Field}
}

// HasOption reports whether value is one of the step's options
func (s *Step) HasOption(value string) bool {
	for _, o := range s.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Graph is the declarative wizard: steps keyed by id, walked from Start
type Graph struct {
	Start StepID
	Steps map[StepID]*Step
}

// Step returns the step with the given id
func (g *Graph) Step(id StepID) (*Step, bool) {
	s, ok := g.Steps[id]
	return s, ok
}

// Path walks the graph from Start taking the first edge whose guard holds
// and returns the steps the user will see for these answers.
func (g *Graph) Path(a *Answers) []StepID {
	path := make([]StepID, 0, len(g.Steps))
	seen := make(map[StepID]bool, len(g.Steps))
	id := g.Start
	for id != "" && !seen[id] {
		step, ok := g.Steps[id]
		if !ok {
			break
		}
		seen[id] = true
		path = append(path, id)

		next := StepID("")
		for _, e := range step.Edges {
			if e.When == nil || e.When(a) {
				next = e.To
				break
			}
		}
		id = next
	}
	return path
}

// Validate checks that every edge points at a known step and that the walk
// with empty answers terminates at a step without edges.
func (g *Graph) Validate() error {
	if _, ok := g.Steps[g.Start]; !ok {
		return fmt.Errorf("start step %q not defined", g.Start)
	}
	for id, s := range g.Steps {
		if s.ID != id {
			return fmt.Errorf("step %q registered under %q", s.ID, id)
		}
		for _, e := range s.Edges {
			if _, ok := g.Steps[e.To]; !ok {
				return fmt.Errorf("step %q has edge to unknown step %q", id, e.To)
			}
		}
	}
	path := g.Path(&Answers{})
	last := g.Steps[path[len(path)-1]]
	if len(last.Edges) != 0 {
		return fmt.Errorf("walk stopped at %q, which still has edges (cycle)", last.ID)
	}
	return nil
}

func always(to StepID) []Edge {
	return []Edge{{To: to}}
}

func opts(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
	}
	return out
}

func fieldContains(field, substr string) Guard {
	return func(a *Answers) bool {
		return strings.Contains(a.Value(field), substr)
	}
}

func fieldEquals(field, value string) Guard {
	return func(a *Answers) bool {
		return a.Value(field) == value
	}
}

func anyCondition(field string) Guard {
	return func(a *Answers) bool {
		return HasSelectionOtherThanNone(a.Selection(field))
	}
}

// DefaultGraph builds the medical questionnaire
func DefaultGraph() *Graph {
	steps := []*Step{
		{
			ID:       StepIntro,
			Title:    "Welcome to Weighright",
			Subtitle: "Let's ensure this treatment is safe for you.",
			Body:     "This medication is one part of a complete weight-management plan. Building muscle, increasing physical activity, and maintaining healthy eating habits are essential for long-term success.",
			Kind:     KindInfo,
			Edges:    always(StepGender),
		},
		{
			ID:       StepGender,
			Title:    "Biological Sex",
			Subtitle: "This helps us tailor your plan.",
			Kind:     KindSingle,
			Field:    FieldGender,
			Options:  opts("Female", "Male"),
			Edges:    always(StepMeasurements),
		},
		{
			ID:       StepMeasurements,
			Title:    "Your Measurements",
			Subtitle: "We use this to calculate BMI eligibility.",
			Kind:     KindMeasurements,
			Edges:    always(StepEthnicity),
		},
		{
			ID:                StepEthnicity,
			Title:             "Ethnic Background",
			Subtitle:          "This helps us apply the correct BMI thresholds.",
			Kind:              KindSingle,
			Field:             FieldEthnicity,
			Options:           opts("White", "Black / Black British", "Asian / Asian British", "Mixed", "Arab", "Other"),
			ChecksEligibility: true,
			Edges:             always(StepSafety),
		},
		{
			ID:       StepSafety,
			Title:    "Safety Awareness",
			Subtitle: "Please confirm you understand the following.",
			Body:     "Weight-loss injections can cause nausea, vomiting, diarrhoea, and constipation. Low blood sugar is rare but possible. Symptoms include sweating, shaking, or confusion.",
			Kind:     KindInfo,
			Edges:    always(StepTreatmentHistory),
		},
		{
			ID:       StepTreatmentHistory,
			Title:    "Treatment History",
			Subtitle: "Are you currently using any weight-loss injection?",
			Kind:     KindSingle,
			Field:    FieldGLP1Usage,
			Options: []Option{
				{Value: "No - Never", Label: "No, I have never used GLP-1 injections"},
				{Value: "No - Stopped", Label: "No, I used them before but stopped"},
				{Value: "Yes - Mounjaro", Label: "Yes, I'm currently using Mounjaro"},
				{Value: "Yes - Wegovy", Label: "Yes, I'm currently using Wegovy / Ozempic"},
			},
			Edges: []Edge{
				{To: StepCurrentDosage, When: fieldContains(FieldGLP1Usage, "Yes")},
				{To: StepPreviousUsage, When: fieldContains(FieldGLP1Usage, "Stopped")},
				{To: StepPreferredMed},
			},
		},
		{
			ID:       StepCurrentDosage,
			Title:    "Current Dosage",
			Subtitle: "What is your current maintenance dose?",
			Kind:     KindSingle,
			Field:    FieldGLP1Dose,
			Options:  opts("Lowest / Starting Dose", "Maintenance Dose", "High Dose"),
			Edges: []Edge{
				{To: StepPreviousUsage, When: fieldContains(FieldGLP1Usage, "Stopped")},
				{To: StepPreferredMed},
			},
		},
		{
			ID:       StepPreviousUsage,
			Title:    "Previous Usage",
			Subtitle: "When did you last use a weight-loss injection?",
			Kind:     KindDate,
			Field:    FieldGLP1StopDate,
			Edges:    always(StepPreferredMed),
		},
		{
			ID:       StepPreferredMed,
			Title:    "Preferred Treatment",
			Subtitle: "Which medication would you prefer if eligible?",
			Kind:     KindSingle,
			Field:    FieldPreferredMed,
			Options:  opts("Mounjaro", "Wegovy", "No Preference"),
			Edges:    always(StepOtherMeds),
		},
		{
			ID:       StepOtherMeds,
			Title:    "Other Medications",
			Subtitle: "Are you taking any other weight-loss drugs?",
			Kind:     KindSingle,
			Field:    FieldOtherWeightMeds,
			Options:  opts("Orlistat", "Mysimba", "Diet Pills", "None"),
			Edges:    always(StepDiabetes),
		},
		{
			ID:       StepDiabetes,
			Title:    "Diabetes History",
			Subtitle: "Have you been diagnosed with diabetes?",
			Kind:     KindSingle,
			Field:    FieldDiabetes,
			Options:  opts("No", "Type 1", "Type 2", "Pre-diabetes", "Gestational (Pregnancy)", "Diabetes in Remission"),
			Edges: []Edge{
				{To: StepRemission, When: fieldEquals(FieldDiabetes, "Diabetes in Remission")},
				{To: StepGIConditions},
			},
		},
		{
			ID:       StepRemission,
			Title:    "Remission Status",
			Subtitle: "Has your diabetes been in remission for at least 6 months?",
			Kind:     KindSingle,
			Field:    FieldDiabetesRemissionTime,
			Options:  opts("Yes", "No"),
			Edges:    always(StepGIConditions),
		},
		{
			ID:       StepGIConditions,
			Title:    "Stomach & Bowel",
			Subtitle: "Do you have any of these conditions?",
			Kind:     KindMulti,
			Field:    FieldGIConditions,
			Options:  opts("Crohns / Colitis", "Gastroparesis", "Severe IBS", "Diverticular Disease", "Significant Digestive Issues", "None"),
			Edges: []Edge{
				{To: StepGIWarning, When: anyCondition(FieldGIConditions)},
				{To: StepHeart},
			},
		},
		{
			ID:       StepGIWarning,
			Title:    "GI Warning",
			Subtitle: "Please confirm understanding.",
			Body:     "Some side effects of treatment overlap with symptoms of gastrointestinal conditions. Monitor carefully and discontinue treatment if symptoms worsen.",
			Kind:     KindInfo,
			Edges:    always(StepHeart),
		},
		{
			ID:       StepHeart,
			Title:    "Heart Health",
			Subtitle: "In the last 3 months, have you had:",
			Kind:     KindSingle,
			Field:    FieldCVEvents,
			Options:  opts("Heart Attack", "Stroke", "Unstable Angina", "None"),
			Edges:    always(StepThyroid),
		},
		{
			ID:       StepThyroid,
			Title:    "Thyroid Health",
			Subtitle: "Do you have a history of:",
			Kind:     KindSingle,
			Field:    FieldThyroid,
			Options:  opts("Thyroid Cancer", "Family History of MEN2", "Thyroid Lump", "None"),
			Edges:    always(StepGallbladder),
		},
		{
			ID:       StepGallbladder,
			Title:    "Gallbladder",
			Subtitle: "Do you have a history of gallstones or removal?",
			Kind:     KindSingle,
			Field:    FieldGallbladder,
			Options:  opts("Gallstones", "Gallbladder Removed", "Other Bile Condition", "None"),
			Edges:    always(StepOtherConditions),
		},
		{
			ID:       StepOtherConditions,
			Title:    "Other Conditions",
			Subtitle: "Do you have any of the following?",
			Kind:     KindMulti,
			Field:    FieldGeneralConditions,
			Options:  opts("Cancer", "Cardiomyopathy", "Heart Failure", "Serious Kidney Disease", "Serious Liver Disease", "Pancreatitis", "None"),
			Edges:    always(StepMentalHealth),
		},
		{
			ID:       StepMentalHealth,
			Title:    "Mental Health",
			Subtitle: "Please select any that apply to you.",
			Kind:     KindMulti,
			Field:    FieldMentalHealthConditions,
			Options:  opts("Depression / Anxiety", "Eating Disorder", "Bipolar", "Psychosis", "None"),
			Edges: []Edge{
				{To: StepMHStatus, When: anyCondition(FieldMentalHealthConditions)},
				{To: StepBariatric},
			},
		},
		{
			ID:       StepMHStatus,
			Title:    "Mental Health Status",
			Subtitle: "How do you feel currently?",
			Kind:     KindSingle,
			Field:    FieldMHStatus,
			Options:  opts("Stable", "Unstable / Concerned"),
			Edges:    always(StepMHAdmission),
		},
		{
			ID:       StepMHAdmission,
			Title:    "Hospital Admission",
			Subtitle: "Have you been admitted for mental health in the last 2 years?",
			Kind:     KindSingle,
			Field:    FieldMHCrisis,
			Options:  opts("Yes", "No"),
			Edges:    always(StepBariatric),
		},
		{
			ID:       StepBariatric,
			Title:    "Weight Loss Surgery",
			Subtitle: "Have you ever had bariatric surgery?",
			Kind:     KindSingle,
			Field:    FieldBariatricSurgery,
			Options:  opts("No", "Yes - Within last 12 months", "Yes - Over 12 months ago"),
			Edges:    always(StepMedicationCheck),
		},
		{
			ID:       StepMedicationCheck,
			Title:    "Medication Check",
			Subtitle: "Do you take any of these? (Insulin, Blood Thinners, Lithium, Steroids)",
			Kind:     KindMulti,
			Field:    FieldMedicationInteractions,
			Options:  opts("Insulin", "Warfarin", "Lithium", "Oral Steroids", "None"),
			Edges: []Edge{
				{To: StepPregnancy, When: fieldEquals(FieldGender, "Female")},
				{To: StepGP},
			},
		},
		{
			ID:       StepPregnancy,
			Title:    "Pregnancy & Safety",
			Subtitle: "For your safety, please confirm:",
			Kind:     KindSingle,
			Field:    FieldPregnancy,
			Options:  opts("Pregnant", "Breastfeeding", "Trying to conceive", "None apply"),
			Edges:    always(StepGP),
		},
		{
			ID:       StepGP,
			Title:    "GP Registration",
			Subtitle: "We need this for safe prescribing.",
			Body:     "Your GP will be notified of any medication supplied to ensure continuity of care.",
			Kind:     KindText,
			Field:    FieldGPInfo,
			Edges:    always(StepProcessing),
		},
		{
			ID:       StepProcessing,
			Title:    "Processing Time",
			Subtitle: "Almost done.",
			Body:     "Orders are processed within 24 hours, but clinical safety checks may take up to 72 hours during busy periods.",
			Kind:     KindInfo,
			Edges:    always(StepAccount),
		},
		{
			ID:       StepAccount,
			Title:    "Create Your Account",
			Subtitle: "Save your progress and view your eligibility results.",
			Kind:     KindAccount,
		},
	}

	g := &Graph{Start: StepIntro, Steps: make(map[StepID]*Step, len(steps))}
	for _, s := range steps {
		g.Steps[s.ID] = s
	}
	return g
}
