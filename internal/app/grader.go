package app

import (
	"strings"

	"quiz-interaction-service/internal/domain"
)

// CorrectThreshold is the number of keywords an answer must contain to be correct.
// A pattern with fewer keywords than this can never be satisfied.
const CorrectThreshold = 2

// Grade matches every keyword of pattern against text, case-insensitively, as a substring.
func Grade(text string, pattern []string) domain.Verdict {
	lowered := strings.ToLower(text)
	matched := 0
	for _, keyword := range pattern {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			matched++
		}
	}
	return domain.Verdict{
		Correct:      matched >= CorrectThreshold,
		MatchedCount: matched,
	}
}
