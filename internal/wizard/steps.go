package wizard

import "fmt"

// Step is a position in the pricing wizard.
type Step int

const (
	StepBasicInfo Step = iota
	StepSizes
	StepFabric
	StepCreationCosts
	StepSupplies
	StepLabor
	StepFixedCosts
	StepSummary
)

// StepCount is the number of wizard steps.
const StepCount = int(StepSummary) + 1

var stepNames = [StepCount]string{
	StepBasicInfo:     "basic-info",
	StepSizes:         "sizes",
	StepFabric:        "fabric",
	StepCreationCosts: "creation-costs",
	StepSupplies:      "supplies",
	StepLabor:         "labor",
	StepFixedCosts:    "fixed-costs",
	StepSummary:       "summary",
}

func (s Step) String() string {
	if s < StepBasicInfo || int(s) >= StepCount {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep maps a step name back to its step.
func ParseStep(name string) (Step, bool) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), true
		}
	}
	return 0, false
}

func clampStep(i int) Step {
	switch {
	case i < 0:
		return StepBasicInfo
	case i >= StepCount:
		return StepSummary
	}
	return Step(i)
}
