package tutor

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Grade reports whether a learner's answer matches the stored answer.
//
// Both sides are NFKC-normalized, trimmed of surrounding whitespace and case
// folded, so "PARIS", " paris " and "Paris" all match "Paris".
func Grade(userAnswer, correct string) bool {
	return normalizeAnswer(userAnswer) == normalizeAnswer(correct)
}

func normalizeAnswer(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(norm.NFKC.String(s)))
}
