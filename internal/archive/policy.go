package archive

import "fmt"

// Policy decides what a batch does when one of its skills fails.
type Policy string

const (
	// PolicyFailFast cancels the batch on the first failing skill.
	PolicyFailFast Policy = "fail_fast"
	// PolicyPartial packs the skills that succeeded and reports the rest.
	PolicyPartial Policy = "partial"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFailFast:
		return PolicyFailFast, nil
	case PolicyPartial:
		return PolicyPartial, nil
	default:
		return "", fmt.Errorf("invalid batch policy %q: must be %s or %s", s, PolicyFailFast, PolicyPartial)
	}
}
