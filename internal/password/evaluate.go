// Package password scores candidate passwords and returns structured, actionable feedback.
// Evaluate is a pure function: no I/O, no state, safe for concurrent use.
package password

import "strings"

// Strength is the qualitative bucket derived from the numeric score.
type Strength int

const (
	StrengthWeak Strength = iota
	StrengthFair
	StrengthGood
	StrengthStrong
)

// String returns the lowercase label used in API responses.
func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthFair:
		return "fair"
	case StrengthGood:
		return "good"
	case StrengthStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Strength serializes as its label.
func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Assessment is the result of evaluating one candidate password.
// Valid is true iff Feedback is empty; a password can score above the weak
// threshold and still be invalid (e.g. over the length cap), so Valid and
// Strength are independent signals.
type Assessment struct {
	Score    int      `json:"score"`
	Strength Strength `json:"strengthLabel"`
	Feedback []string `json:"feedback"`
	Valid    bool     `json:"isValid"`
}

const (
	minLength   = 8
	maxLength   = 128
	bonusLength = 12
	extraLength = 16

	symbolSet = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// commonPasswords is a fixed denylist; membership (case-insensitive) forces the score to 0.
var commonPasswords = map[string]bool{
	"password":  true,
	"password1": true,
	"123456":    true,
	"12345678":  true,
	"qwerty":    true,
	"abc123":    true,
	"letmein":   true,
	"welcome":   true,
	"iloveyou":  true,
	"111111":    true,
	"admin":     true,
}

// sequenceRuns are the ordered runs whose 3-character windows count as sequential.
var sequenceRuns = []string{
	"0123456789",
	"abcdefghijklmnopqrstuvwxyz",
}

// Evaluate scores a candidate password and returns an Assessment.
// Empty and over-length input are handled by feedback, never by an error.
func Evaluate(candidate string) Assessment {
	runes := []rune(candidate)
	length := len(runes)
	score := 0
	feedback := []string{}

	if length >= minLength {
		score += 20
	} else {
		feedback = append(feedback, "Password must be at least 8 characters")
	}
	if length > maxLength {
		feedback = append(feedback, "Password must not exceed 128 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(symbolSet, r):
			hasSymbol = true
		}
	}
	if hasLower {
		score += 15
	} else {
		feedback = append(feedback, "Add a lowercase letter")
	}
	if hasUpper {
		score += 15
	} else {
		feedback = append(feedback, "Add an uppercase letter")
	}
	if hasDigit {
		score += 15
	} else {
		feedback = append(feedback, "Add a number")
	}
	if hasSymbol {
		score += 20
	} else {
		feedback = append(feedback, "Add a symbol (for example !@#$%)")
	}

	// Length bonuses stack and are independent of the base-length check.
	if length >= bonusLength {
		score += 10
	}
	if length >= extraLength {
		score += 5
	}

	if commonPasswords[strings.ToLower(candidate)] {
		feedback = append(feedback, "Password is too common; choose something less guessable")
		score = 0
	}

	if hasRepeatedRun(runes) {
		feedback = append(feedback, "Avoid repeating the same character three or more times")
		score -= 10
	}
	if hasAscendingSequence(strings.ToLower(candidate)) {
		feedback = append(feedback, `Avoid sequential characters like "123" or "abc"`)
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Assessment{
		Score:    score,
		Strength: strengthFor(score),
		Feedback: feedback,
		Valid:    len(feedback) == 0,
	}
}

func strengthFor(score int) Strength {
	switch {
	case score < 20:
		return StrengthWeak
	case score < 50:
		return StrengthFair
	case score < 75:
		return StrengthGood
	default:
		return StrengthStrong
	}
}

// hasRepeatedRun reports whether any character repeats 3+ times consecutively.
func hasRepeatedRun(runes []rune) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasAscendingSequence reports whether lowered contains any 3-character window
// of one of the fixed ascending runs (e.g. "123", "abc", "xyz").
func hasAscendingSequence(lowered string) bool {
	for _, run := range sequenceRuns {
		for i := 0; i+3 <= len(run); i++ {
			if strings.Contains(lowered, run[i:i+3]) {
				return true
			}
		}
	}
	return false
}
