package password

import (
	"reflect"
	"strings"
	"testing"
)

func TestEvaluate_AllCriteriaMet(t *testing.T) {
	a := Evaluate("Horse#Zvq7Lbat9Km") // 17 chars, all classes, no repeats or sequences
	if a.Score != 100 {
		t.Errorf("Score = %d, want 100", a.Score)
	}
	if !a.Valid {
		t.Errorf("Valid = false, feedback: %v", a.Feedback)
	}
	if a.Strength != StrengthStrong {
		t.Errorf("Strength = %v, want strong", a.Strength)
	}
	if len(a.Feedback) != 0 {
		t.Errorf("Feedback should be empty, got %v", a.Feedback)
	}
}

func TestEvaluate_Empty(t *testing.T) {
	a := Evaluate("")
	if a.Valid {
		t.Error("empty password should not be valid")
	}
	if a.Score != 0 {
		t.Errorf("Score = %d, want 0", a.Score)
	}
	if a.Strength != StrengthWeak {
		t.Errorf("Strength = %v, want weak", a.Strength)
	}
	// Every unmet criterion gets a feedback entry: length + four character classes.
	if len(a.Feedback) != 5 {
		t.Errorf("Feedback entries = %d, want 5: %v", len(a.Feedback), a.Feedback)
	}
}

func TestEvaluate_DenylistForcesZero(t *testing.T) {
	for _, p := range []string{"password", "Password", "PASSWORD", "qwerty", "letmein"} {
		a := Evaluate(p)
		if a.Score != 0 {
			t.Errorf("Evaluate(%q).Score = %d, want 0", p, a.Score)
		}
		if a.Valid {
			t.Errorf("Evaluate(%q) should not be valid", p)
		}
	}
}

func TestEvaluate_RepeatedRunPenalty(t *testing.T) {
	a := Evaluate("Hooo7#Kmw") // all classes (85), "ooo" run subtracts 10
	if a.Score != 75 {
		t.Errorf("Score = %d, want 75", a.Score)
	}
	if a.Valid {
		t.Error("password with a repeated run should not be valid")
	}
}

func TestEvaluate_AscendingSequencePenalty(t *testing.T) {
	a := Evaluate("Wabc7#Kmq") // all classes (85), "abc" subtracts 10
	if a.Score != 75 {
		t.Errorf("Score = %d, want 75", a.Score)
	}
	if a.Valid {
		t.Error("password with an ascending sequence should not be valid")
	}

	a = Evaluate("Wk123#Hmq") // digit sequence
	if a.Valid {
		t.Error("password containing \"123\" should not be valid")
	}
}

func TestEvaluate_PenaltyFloorsAtZero(t *testing.T) {
	a := Evaluate("aaa") // short, single class, repeated run: 15 - 10
	if a.Score != 5 {
		t.Errorf("Score = %d, want 5", a.Score)
	}
	a = Evaluate("111") // 15 for the digit class, -10 repeat penalty
	if a.Score != 5 {
		t.Errorf("Score = %d, want 5", a.Score)
	}
}

func TestEvaluate_OverLengthIsStrongButInvalid(t *testing.T) {
	p := strings.Repeat("Ab1!", 33) // 132 chars, all classes, no repeats/sequences
	a := Evaluate(p)
	if a.Score != 100 {
		t.Errorf("Score = %d, want 100", a.Score)
	}
	if a.Strength != StrengthStrong {
		t.Errorf("Strength = %v, want strong", a.Strength)
	}
	if a.Valid {
		t.Error("over-length password must not be valid even when it scores 100")
	}
}

func TestEvaluate_LengthBonusesStack(t *testing.T) {
	// 12 chars: base 85 + 10 bonus.
	a := Evaluate("Wm#7qhxt!Dzu")
	if a.Score != 95 {
		t.Errorf("12-char Score = %d, want 95", a.Score)
	}
	// 8 chars: base 85, no bonus.
	a = Evaluate("Wm#7qhxt")
	if a.Score != 85 {
		t.Errorf("8-char Score = %d, want 85", a.Score)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	for _, p := range []string{"", "password", "Hooo7#Kmw", "Horse#Zvq7Lbat9Km"} {
		first := Evaluate(p)
		second := Evaluate(p)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Evaluate(%q) not idempotent: %+v vs %+v", p, first, second)
		}
	}
}

func TestStrength_String(t *testing.T) {
	cases := map[Strength]string{
		StrengthWeak:   "weak",
		StrengthFair:   "fair",
		StrengthGood:   "good",
		StrengthStrong: "strong",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
	if Strength(99).String() != "unknown" {
		t.Error("out-of-range strength should stringify as unknown")
	}
}

func TestStrength_Thresholds(t *testing.T) {
	cases := []struct {
		score int
		want  Strength
	}{
		{0, StrengthWeak}, {19, StrengthWeak},
		{20, StrengthFair}, {49, StrengthFair},
		{50, StrengthGood}, {74, StrengthGood},
		{75, StrengthStrong}, {100, StrengthStrong},
	}
	for _, tc := range cases {
		if got := strengthFor(tc.score); got != tc.want {
			t.Errorf("strengthFor(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
