package domain

import "strings"

// Evaluate scores a raw submitted answer against a question and returns
// (correct, points earned).
//
// Free-text types (essay, short answer) are accepted whenever the trimmed
// answer is non-empty; no semantic grading is performed. All other types
// require exact equality with the canonical answer string after trimming,
// compared case-insensitively. No partial credit.
func Evaluate(q Question, rawAnswer string) (bool, int) {
	trimmed := strings.TrimSpace(rawAnswer)

	var correct bool
	if q.Type.FreeText() {
		correct = trimmed != ""
	} else {
		correct = strings.EqualFold(trimmed, strings.TrimSpace(q.Answer.Canonical()))
	}

	if !correct {
		return false, 0
	}
	return true, q.PointValue()
}
