// Package risk combines signals about a login attempt into a bounded score,
// a qualitative level, and a recommended action. Score is a pure function of
// its inputs; helpers classify user agents and login hours.
package risk

import "fmt"

// Level classifies a risk score.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the lowercase label used in logs and events.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Level serializes as its label.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Action is the recommended response to an authentication attempt.
type Action int

const (
	ActionAllow Action = iota
	ActionMFAChallenge
	ActionBlock
)

// String returns the lowercase label used in logs and events.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionMFAChallenge:
		return "mfa_challenge"
	case ActionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Action serializes as its label.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Signals are the inputs to a risk evaluation for one authentication attempt.
type Signals struct {
	UnknownDevice       bool
	AnomalousLocation   bool
	UnusualTime         bool
	NewIPAddress        bool
	SuspiciousUserAgent bool
	FailedAttempts      int
}

// Assessment is the outcome of scoring one attempt. Factors lists the triggered
// signals as human-readable labels in a fixed order (device, location, time,
// IP, user-agent, failed attempts) so callers can assert on them.
type Assessment struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []string `json:"factors"`
	Action  Action   `json:"recommendedAction"`
}

// Signal weights. Failed attempts contribute 10 each, capped at 40.
const (
	weightUnknownDevice       = 25
	weightAnomalousLocation   = 30
	weightUnusualTime         = 15
	weightNewIPAddress        = 20
	weightSuspiciousUserAgent = 15
	weightPerFailedAttempt    = 10
	maxFailedContribution     = 40
	maxScore                  = 100
)

// Score evaluates the signals and returns a saturating score in [0,100],
// its level, the triggered factors, and the recommended action.
func Score(s Signals) Assessment {
	score := 0
	factors := []string{}

	if s.UnknownDevice {
		score += weightUnknownDevice
		factors = append(factors, "Unknown device")
	}
	if s.AnomalousLocation {
		score += weightAnomalousLocation
		factors = append(factors, "Anomalous location")
	}
	if s.UnusualTime {
		score += weightUnusualTime
		factors = append(factors, "Unusual login time")
	}
	if s.NewIPAddress {
		score += weightNewIPAddress
		factors = append(factors, "New IP address")
	}
	if s.SuspiciousUserAgent {
		score += weightSuspiciousUserAgent
		factors = append(factors, "Suspicious user agent")
	}
	if s.FailedAttempts > 0 {
		// Cap the count before multiplying so an extreme attempt count
		// cannot overflow into a negative contribution.
		attempts := s.FailedAttempts
		if attempts > maxFailedContribution/weightPerFailedAttempt {
			attempts = maxFailedContribution / weightPerFailedAttempt
		}
		contribution := attempts * weightPerFailedAttempt
		score += contribution
		factors = append(factors, fmt.Sprintf("%d failed attempts", s.FailedAttempts))
	}

	if score > maxScore {
		score = maxScore
	}

	level := levelFor(score)
	return Assessment{
		Score:   score,
		Level:   level,
		Factors: factors,
		Action:  actionFor(level),
	}
}

// levelFor checks thresholds in descending order so boundary values land in
// the higher band (exactly 70 is critical, not high).
func levelFor(score int) Level {
	switch {
	case score >= 70:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// actionFor maps a level to the recommended action. Medium risk is allowed
// outright; only high risk escalates to an MFA challenge.
func actionFor(level Level) Action {
	switch level {
	case LevelCritical:
		return ActionBlock
	case LevelHigh:
		return ActionMFAChallenge
	default:
		return ActionAllow
	}
}
