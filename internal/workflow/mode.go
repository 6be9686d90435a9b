package workflow

import "strings"

// ModeInferrer guesses the mode of a request without a directive. It
// must report confident == false unless the answer is certain.
type ModeInferrer func(request string) (m Mode, confident bool)

// SelectMode picks the session mode. A directive anywhere in the
// request wins; with no directive the inferrer is consulted and only a
// confident answer is accepted.
func SelectMode(request string, infer ModeInferrer) (Mode, error) {
	plan := strings.Contains(request, DirectivePlan)
	act := strings.Contains(request, DirectiveAct)

	switch {
	case plan && act:
		return "", &AmbiguousModeError{Reason: "both directives present"}
	case plan:
		return ModePlan, nil
	case act:
		return ModeAct, nil
	}

	if infer == nil {
		return "", &AmbiguousModeError{Reason: "no directive"}
	}
	m, confident := infer(request)
	if !confident {
		return "", &AmbiguousModeError{Reason: "inference not confident"}
	}
	if m != ModePlan && m != ModeAct {
		return "", &AmbiguousModeError{Reason: "inferred an unknown mode"}
	}
	return m, nil
}
