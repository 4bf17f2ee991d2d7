package eligibility

import (
	"strings"
	"time"

	"github.com/weighright/portal/pkg/types"
)

// NotEligibleCutoff is the last step index still shown once the verdict is
// known to be negative. Past it the wizard only renders the terminal screen.
const NotEligibleCutoff = 3

// Answers collects single values and multi-select sets by field name
type Answers struct {
	Values     map[string]string   `json:"values"`
	Selections map[string][]string `json:"selections"`
}

// Value returns a single-valued answer or ""
func (a *Answers) Value(field string) string {
	if a == nil || a.Values == nil {
		return ""
	}
	return a.Values[field]
}

// Selection returns a multi-select answer or nil
func (a *Answers) Selection(field string) []string {
	if a == nil || a.Selections == nil {
		return nil
	}
	return a.Selections[field]
}

func (a *Answers) set(field, value string) {
	if a.Values == nil {
		a.Values = make(map[string]string)
	}
	a.Values[field] = value
}

func (a *Answers) setSelection(field string, sel []string) {
	if a.Selections == nil {
		a.Selections = make(map[string][]string)
	}
	a.Selections[field] = sel
}

func (a *Answers) clone() Answers {
	out := Answers{
		Values:     make(map[string]string, len(a.Values)),
		Selections: make(map[string][]string, len(a.Selections)),
	}
	for k, v := range a.Values {
		out.Values[k] = v
	}
	for k, v := range a.Selections {
		out.Selections[k] = append([]string(nil), v...)
	}
	return out
}

// AccountRequest is the final step's form
type AccountRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Account is what the wizard keeps of the created account. The password is
// checked for presence and then dropped.
type Account struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Session is one visitor's pass through the wizard
type Session struct {
	ID         string
	Answers    Answers
	Cursor     int
	Verdict    Verdict
	Assessment *Assessment
	Account    *Account
	Completed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	graph *Graph
}

// NewSession starts a session at the first step of graph
func NewSession(id string, graph *Graph, now time.Time) *Session {
	return &Session{
		ID:        id,
		graph:     graph,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Path is the visible step list for the current answers
func (s *Session) Path() []StepID {
	return s.graph.Path(&s.Answers)
}

// index clamps the cursor to the path, which can shrink when answers change
func (s *Session) index(path []StepID) int {
	if s.Cursor >= len(path) {
		return len(path) - 1
	}
	if s.Cursor < 0 {
		return 0
	}
	return s.Cursor
}

// Current returns the step under the cursor
func (s *Session) Current() *Step {
	path := s.Path()
	step, _ := s.graph.Step(path[s.index(path)])
	return step
}

// NotEligible reports whether the terminal not-eligible screen is showing
func (s *Session) NotEligible() bool {
	return s.Verdict == VerdictNotEligible && s.Cursor > NotEligibleCutoff
}

// CanGoBack mirrors the wizard footer: hidden on the first and last step
func (s *Session) CanGoBack() bool {
	if s.NotEligible() || s.Completed {
		return false
	}
	path := s.Path()
	idx := s.index(path)
	return idx > 0 && idx < len(path)-1
}

// CanContinue reports whether the current step's Continue control is enabled
func (s *Session) CanContinue() bool {
	if s.NotEligible() || s.Completed {
		return false
	}
	step := s.Current()
	switch step.Kind {
	case KindInfo, KindDate:
		return true
	case KindSingle:
		return s.Answers.Value(step.Field) != ""
	case KindMulti:
		return len(s.Answers.Selection(step.Field)) > 0
	case KindMeasurements:
		return parseMeasurement(s.Answers.Value(FieldHeight)) > 0 &&
			parseMeasurement(s.Answers.Value(FieldWeight)) > 0
	case KindText:
		return strings.TrimSpace(s.Answers.Value(step.Field)) != ""
	}
	return false
}

func (s *Session) checkOpen() error {
	if s.NotEligible() {
		return types.NewPreconditionError(types.ErrCodeNotEligible,
			"assessment ended: BMI does not meet the threshold", nil)
	}
	if s.Completed {
		return types.NewPreconditionError(types.ErrCodeStepMismatch, "assessment already completed", nil)
	}
	return nil
}

func (s *Session) checkField(step *Step, field string) error {
	for _, f := range step.Fields() {
		if f == field {
			return nil
		}
	}
	return types.NewValidationError(types.ErrCodeStepMismatch,
		"field does not belong to the current step",
		map[string]interface{}{"step": step.ID, "field": field})
}

// Answer records a single value for a field of the current step. Single
// select steps advance immediately; the eligibility step also runs the rule.
func (s *Session) Answer(field, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	step := s.Current()
	if err := s.checkField(step, field); err != nil {
		return err
	}

	switch step.Kind {
	case KindSingle:
		if !step.HasOption(value) {
			return types.NewValidationError(types.ErrCodeInvalidInput, "unknown option",
				map[string]interface{}{"field": field, "value": value})
		}
		s.Answers.set(field, value)
		if step.ChecksEligibility {
			s.evaluate()
		}
		s.advance()
	case KindMulti:
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"multi-select fields are changed with toggle", map[string]interface{}{"field": field})
	default:
		s.Answers.set(field, strings.TrimSpace(value))
	}
	return nil
}

// Toggle flips one option of the current multi-select step
func (s *Session) Toggle(field, option string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	step := s.Current()
	if err := s.checkField(step, field); err != nil {
		return err
	}
	if step.Kind != KindMulti {
		return types.NewValidationError(types.ErrCodeInvalidInput, "field is not multi-select",
			map[string]interface{}{"field": field})
	}
	if !step.HasOption(option) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "unknown option",
			map[string]interface{}{"field": field, "value": option})
	}
	s.Answers.setSelection(field, ToggleMultiSelect(s.Answers.Selection(field), option))
	return nil
}

// Continue advances past the current step when its Continue control is enabled
func (s *Session) Continue() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.Current().Kind == KindAccount {
		return types.NewValidationError(types.ErrCodeStepMismatch, "final step requires account details", nil)
	}
	if !s.CanContinue() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "current step is incomplete",
			map[string]interface{}{"step": s.Current().ID})
	}
	s.advance()
	return nil
}

// Back moves the cursor one step back
func (s *Session) Back() error {
	if !s.CanGoBack() {
		return types.NewPreconditionError(types.ErrCodeStepMismatch, "cannot go back from this step", nil)
	}
	s.Cursor = s.index(s.Path()) - 1
	return nil
}

// CreateAccount completes the wizard from the final step
func (s *Session) CreateAccount(req AccountRequest) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.Current().Kind != KindAccount {
		return types.NewValidationError(types.ErrCodeStepMismatch, "not at the account step", nil)
	}
	missing := []string{}
	if strings.TrimSpace(req.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "missing account details",
			map[string]interface{}{"missing": missing})
	}

	s.Account = &Account{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
	}
	s.Completed = true
	return nil
}

func (s *Session) evaluate() {
	a := Assess(s.Answers.Value(FieldHeight), s.Answers.Value(FieldWeight), s.Answers.Value(FieldEthnicity))
	s.Assessment = &a
	if a.Eligible {
		s.Verdict = VerdictEligible
	} else {
		s.Verdict = VerdictNotEligible
	}
}

func (s *Session) advance() {
	path := s.Path()
	idx := s.index(path)
	if idx < len(path)-1 {
		idx++
	}
	s.Cursor = idx
}

// SessionView is the renderable state of a session
type SessionView struct {
	ID          string      `json:"id"`
	Step        *Step       `json:"step,omitempty"`
	StepIndex   int         `json:"stepIndex"`
	StepCount   int         `json:"stepCount"`
	Progress    float64     `json:"progress"`
	Path        []StepID    `json:"path"`
	CanGoBack   bool        `json:"canGoBack"`
	CanContinue bool        `json:"canContinue"`
	NotEligible bool        `json:"notEligible"`
	Eligible    Verdict     `json:"eligible"`
	Assessment  *Assessment `json:"assessment,omitempty"`
	Answers     Answers     `json:"answers"`
	Completed   bool        `json:"completed"`
	Account     *Account    `json:"account,omitempty"`
}

// View snapshots the session for rendering
func (s *Session) View() *SessionView {
	path := s.Path()
	idx := s.index(path)
	v := &SessionView{
		ID:          s.ID,
		StepIndex:   idx,
		StepCount:   len(path),
		Progress:    float64(idx+1) / float64(len(path)) * 100,
		Path:        path,
		CanGoBack:   s.CanGoBack(),
		CanContinue: s.CanContinue(),
		NotEligible: s.NotEligible(),
		Eligible:    s.Verdict,
		Answers:     s.Answers.clone(),
		Completed:   s.Completed,
	}
	if s.Assessment != nil {
		a := *s.Assessment
		v.Assessment = &a
	}
	if s.Account != nil {
		acc := *s.Account
		v.Account = &acc
	}
	if !v.NotEligible {
		step, _ := s.graph.Step(path[idx])
		v.Step = step
	}
	return v
}
