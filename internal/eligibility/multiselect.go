package eligibility

// Options that clear every other selection in a multi-select field
const (
	OptionNone           = "None"
	OptionNoneOfTheAbove = "None of the above"
)

func isNone(opt string) bool {
	return opt == OptionNone || opt == OptionNoneOfTheAbove
}

// ToggleMultiSelect returns the selection after the user clicks option.
// Picking a none option collapses the set to ["None"]; picking anything else
// drops the none entry and flips that option.
func ToggleMultiSelect(current []string, option string) []string {
	if isNone(option) {
		return []string{OptionNone}
	}

	next := make([]string, 0, len(current)+1)
	selected := false
	for _, c := range current {
		if isNone(c) {
			continue
		}
		if c == option {
			selected = true
			continue
		}
		next = append(next, c)
	}
	if !selected {
		next = append(next, option)
	}
	return next
}

// HasSelectionOtherThanNone reports whether the user picked a real condition
func HasSelectionOtherThanNone(selection []string) bool {
	if len(selection) == 0 {
		return false
	}
	for _, s := range selection {
		if isNone(s) {
			return false
		}
	}
	return true
}
