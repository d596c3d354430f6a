package workflow

import (
	"math/rand"

	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

// TeamLoad is a team's count of inspections assigned in the recent window.
type TeamLoad struct {
	TeamID   string
	Workload int
}

// Picker returns a uniformly distributed index in [0, n).
type Picker interface {
	Intn(n int) int
}

// PickerFunc adapts a plain function to Picker.
type PickerFunc func(n int) int

// Intn implements Picker.
func (f PickerFunc) Intn(n int) int { return f(n) }

// DefaultPicker draws from the process-wide math/rand source.
var DefaultPicker Picker = PickerFunc(rand.Intn)

// FairnessThreshold is the mean workload plus one.
func FairnessThreshold(loads []TeamLoad) float64 {
	if len(loads) == 0 {
		return 0
	}
	total := 0
	for _, load := range loads {
		total += load.Workload
	}
	return float64(total)/float64(len(loads)) + 1
}

// EligibleTeams keeps teams strictly below the fairness threshold, or every
// team when none qualifies.
func EligibleTeams(loads []TeamLoad) []TeamLoad {
	threshold := FairnessThreshold(loads)
	eligible := make([]TeamLoad, 0, len(loads))
	for _, load := range loads {
		if float64(load.Workload) < threshold {
			eligible = append(eligible, load)
		}
	}
	if len(eligible) == 0 {
		return append(eligible, loads...)
	}
	return eligible
}

// SelectTeam picks one team at random from the eligible set.
func SelectTeam(loads []TeamLoad, picker Picker) (string, error) {
	if len(loads) == 0 {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no active teams for school")
	}
	if len(loads) == 1 {
		return loads[0].TeamID, nil
	}
	if picker == nil {
		picker = DefaultPicker
	}
	eligible := EligibleTeams(loads)
	return eligible[picker.Intn(len(eligible))].TeamID, nil
}
