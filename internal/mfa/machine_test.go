package mfa

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"account-security-plane/internal/mfa/domain"
)

type fakeIssuer struct {
	calls int
	err   error
}

func (f *fakeIssuer) IssueTOTP(ctx context.Context, account string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.calls++
	secret := fmt.Sprintf("SECRET-%d", f.calls)
	return secret, "otpauth://totp/test:" + account + "?secret=" + secret, nil
}

type fakeVerifier struct {
	accept string
}

func (f *fakeVerifier) VerifyTOTP(code, secret string) bool {
	return code == f.accept && secret != ""
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendCode(ctx context.Context, method domain.Method, destination, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, code)
	return nil
}

type fakeFactors struct {
	recorded []*domain.Enrollment
	err      error
}

func (f *fakeFactors) RecordFactor(ctx context.Context, e *domain.Enrollment) error {
	if f.err != nil {
		return f.err
	}
	cp := *e
	cp.BackupCodes = append([]string(nil), e.BackupCodes...)
	f.recorded = append(f.recorded, &cp)
	return nil
}

func newTestMachine() (*Machine, *fakeIssuer, *fakeVerifier, *fakeSender, *fakeFactors) {
	issuer := &fakeIssuer{}
	verifier := &fakeVerifier{accept: "123456"}
	sender := &fakeSender{}
	factors := &fakeFactors{}
	return NewMachine(issuer, verifier, sender, factors, 10), issuer, verifier, sender, factors
}

func TestMachineTOTPHappyPath(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, factors := newTestMachine()

	e := m.Start("u1")
	if e.State != domain.StateMethodSelection {
		t.Fatalf("Start state = %v, want method_selection", e.State)
	}

	if err := m.SelectMethod(e, domain.MethodTOTP, ""); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	if e.State != domain.StateSetup {
		t.Fatalf("state after SelectMethod = %v, want setup", e.State)
	}

	if err := m.BeginSetup(ctx, e, "u1@example.com"); err != nil {
		t.Fatalf("BeginSetup: %v", err)
	}
	if e.State != domain.StateVerify {
		t.Fatalf("state after BeginSetup = %v, want verify", e.State)
	}
	if e.Secret == "" || e.QRCodeReference == "" {
		t.Fatalf("BeginSetup did not populate secret and QR reference: %+v", e)
	}

	if err := m.SubmitCode(ctx, e, "123456"); err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}
	if e.State != domain.StateBackupDisplay {
		t.Fatalf("state after SubmitCode = %v, want backup_display", e.State)
	}
	if len(e.BackupCodes) != 10 {
		t.Fatalf("backup codes = %d, want 10", len(e.BackupCodes))
	}
	if len(factors.recorded) != 0 {
		t.Fatal("factor recorded before acknowledgement")
	}

	if err := m.Acknowledge(ctx, e); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if e.State != domain.StateComplete {
		t.Fatalf("state after Acknowledge = %v, want complete", e.State)
	}
	if e.BackupCodes != nil || e.Secret != "" {
		t.Fatalf("transient fields not cleared after Acknowledge: %+v", e)
	}
	if len(factors.recorded) != 1 {
		t.Fatalf("recorded factors = %d, want 1", len(factors.recorded))
	}
	if got := factors.recorded[0]; got.Method != domain.MethodTOTP || len(got.BackupCodes) != 10 {
		t.Fatalf("recorded factor = %+v", got)
	}
}

func TestMachineRejectsSkippedTransitions(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _ := newTestMachine()

	e := m.Start("u1")
	if err := m.SubmitCode(ctx, e, "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SubmitCode from method_selection: err = %v, want ErrInvalidTransition", err)
	}
	if err := m.Acknowledge(ctx, e); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Acknowledge from method_selection: err = %v, want ErrInvalidTransition", err)
	}
	if err := m.BeginSetup(ctx, e, "u1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("BeginSetup from method_selection: err = %v, want ErrInvalidTransition", err)
	}

	m.SelectMethod(e, domain.MethodTOTP, "")
	m.BeginSetup(ctx, e, "u1")
	if err := m.Acknowledge(ctx, e); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Acknowledge from verify: err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineSelectMethodValidation(t *testing.T) {
	m, _, _, _, _ := newTestMachine()

	e := m.Start("u1")
	if err := m.SelectMethod(e, domain.Method("push"), ""); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("err = %v, want ErrUnsupportedMethod", err)
	}
	if e.State != domain.StateMethodSelection {
		t.Fatalf("state changed on rejected method: %v", e.State)
	}

	if err := m.SelectMethod(e, domain.MethodSMS, ""); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("err = %v, want ErrNoDestination", err)
	}
}

func TestMachineCodeValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _ := newTestMachine()

	e := m.Start("u1")
	m.SelectMethod(e, domain.MethodTOTP, "")
	m.BeginSetup(ctx, e, "u1")

	for _, code := range []string{"", "12345", "1234567", "12345a", "12 456"} {
		if err := m.SubmitCode(ctx, e, code); !errors.Is(err, ErrMalformedCode) {
			t.Errorf("SubmitCode(%q): err = %v, want ErrMalformedCode", code, err)
		}
	}
	if err := m.SubmitCode(ctx, e, "654321"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("wrong code: err = %v, want ErrCodeMismatch", err)
	}
	if e.State != domain.StateVerify {
		t.Fatalf("state after failed submits = %v, want verify", e.State)
	}

	// A failed attempt does not consume the enrollment.
	if err := m.SubmitCode(ctx, e, "123456"); err != nil {
		t.Fatalf("correct code after failures: %v", err)
	}
}

func TestMachineBackDiscardsStepState(t *testing.T) {
	ctx := context.Background()
	m, issuer, _, _, _ := newTestMachine()

	e := m.Start("u1")
	m.SelectMethod(e, domain.MethodTOTP, "")
	m.BeginSetup(ctx, e, "u1")
	first := e.Secret

	if err := m.Back(e); err != nil {
		t.Fatalf("Back from verify: %v", err)
	}
	if e.State != domain.StateSetup {
		t.Fatalf("state after Back = %v, want setup", e.State)
	}
	if e.Secret != "" || e.QRCodeReference != "" {
		t.Fatal("Back from verify did not discard the issued secret")
	}

	// Re-entering setup issues a fresh secret.
	if err := m.BeginSetup(ctx, e, "u1"); err != nil {
		t.Fatalf("BeginSetup after Back: %v", err)
	}
	if e.Secret == first {
		t.Fatal("re-entered setup reused the discarded secret")
	}
	if issuer.calls != 2 {
		t.Fatalf("issuer calls = %d, want 2", issuer.calls)
	}

	m.SubmitCode(ctx, e, "123456")
	firstCodes := append([]string(nil), e.BackupCodes...)
	if err := m.Back(e); err != nil {
		t.Fatalf("Back from backup_display: %v", err)
	}
	if e.State != domain.StateVerify || e.BackupCodes != nil {
		t.Fatalf("Back from backup_display did not discard codes: %+v", e)
	}
	m.SubmitCode(ctx, e, "123456")
	if len(e.BackupCodes) == len(firstCodes) && e.BackupCodes[0] == firstCodes[0] {
		t.Fatal("re-verification reused discarded backup codes")
	}

	// Back to method selection clears the choice.
	e2 := m.Start("u2")
	m.SelectMethod(e2, domain.MethodSMS, "15550001111")
	if err := m.Back(e2); err != nil {
		t.Fatalf("Back from setup: %v", err)
	}
	if e2.State != domain.StateMethodSelection || e2.Method != "" || e2.Destination != "" {
		t.Fatalf("Back from setup left state behind: %+v", e2)
	}
}

func TestMachineBackRejectedAtBoundaries(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _ := newTestMachine()

	e := m.Start("u1")
	if err := m.Back(e); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Back from method_selection: err = %v, want ErrInvalidTransition", err)
	}

	m.SelectMethod(e, domain.MethodTOTP, "")
	m.BeginSetup(ctx, e, "u1")
	m.SubmitCode(ctx, e, "123456")
	m.Acknowledge(ctx, e)
	if err := m.Back(e); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Back from complete: err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineSMSPath(t *testing.T) {
	ctx := context.Background()
	m, _, _, sender, factors := newTestMachine()

	e := m.Start("u1")
	if err := m.SelectMethod(e, domain.MethodSMS, "15550001111"); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	if err := m.BeginSetup(ctx, e, "u1"); err != nil {
		t.Fatalf("BeginSetup: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("challenges sent = %d, want 1", len(sender.sent))
	}
	if e.Secret != "" {
		t.Fatal("sms enrollment should not carry a TOTP secret")
	}

	if err := m.SubmitCode(ctx, e, "000000"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("wrong challenge code: err = %v, want ErrCodeMismatch", err)
	}
	if err := m.SubmitCode(ctx, e, sender.sent[0]); err != nil {
		t.Fatalf("SubmitCode with dispatched code: %v", err)
	}
	if err := m.Acknowledge(ctx, e); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if len(factors.recorded) != 1 || factors.recorded[0].Method != domain.MethodSMS {
		t.Fatalf("recorded = %+v", factors.recorded)
	}
}

func TestMachineCollaboratorFailureKeepsState(t *testing.T) {
	ctx := context.Background()

	t.Run("sender failure keeps setup retryable", func(t *testing.T) {
		m, _, _, sender, _ := newTestMachine()
		sender.err = errors.New("gateway down")

		e := m.Start("u1")
		m.SelectMethod(e, domain.MethodSMS, "15550001111")
		if err := m.BeginSetup(ctx, e, "u1"); err == nil {
			t.Fatal("BeginSetup succeeded despite sender failure")
		}
		if e.State != domain.StateSetup {
			t.Fatalf("state = %v, want setup", e.State)
		}

		sender.err = nil
		if err := m.BeginSetup(ctx, e, "u1"); err != nil {
			t.Fatalf("retry after sender recovery: %v", err)
		}
		if e.State != domain.StateVerify {
			t.Fatalf("state after retry = %v, want verify", e.State)
		}
	})

	t.Run("store failure keeps backup_display", func(t *testing.T) {
		m, _, _, _, factors := newTestMachine()

		e := m.Start("u1")
		m.SelectMethod(e, domain.MethodTOTP, "")
		m.BeginSetup(ctx, e, "u1")
		m.SubmitCode(ctx, e, "123456")

		factors.err = errors.New("db down")
		if err := m.Acknowledge(ctx, e); err == nil {
			t.Fatal("Acknowledge succeeded despite store failure")
		}
		if e.State != domain.StateBackupDisplay || len(e.BackupCodes) != 10 {
			t.Fatalf("failed Acknowledge mutated enrollment: %+v", e)
		}

		factors.err = nil
		if err := m.Acknowledge(ctx, e); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if e.State != domain.StateComplete {
			t.Fatalf("state = %v, want complete", e.State)
		}
	})
}

func TestGenerateBackupCodesShape(t *testing.T) {
	codes, err := GenerateBackupCodes(10)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("len = %d, want 10", len(codes))
	}
	seen := make(map[string]bool)
	for _, c := range codes {
		if len(c) != 11 || c[5] != '-' {
			t.Errorf("code %q not in XXXXX-XXXXX form", c)
		}
		if seen[c] {
			t.Errorf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestCodeHashing(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code %q, want 6 digits", code)
	}
	if !CodeEqual(HashCode(code), code) {
		t.Fatal("CodeEqual rejected the matching code")
	}
	if CodeEqual(HashCode(code), "999999") && code != "999999" {
		t.Fatal("CodeEqual accepted a mismatching code")
	}
}
