package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	devicerepo "account-security-plane/internal/device/repository"
	identityrepo "account-security-plane/internal/identity/repository"
	"account-security-plane/internal/loginattempt"
	"account-security-plane/internal/mfa"
	mfadomain "account-security-plane/internal/mfa/domain"
	mfarepo "account-security-plane/internal/mfa/repository"
	"account-security-plane/internal/revocation"
	"account-security-plane/internal/risk"
	"account-security-plane/internal/security"
	sessionrepo "account-security-plane/internal/session/repository"
	userrepo "account-security-plane/internal/user/repository"
)

type acceptVerifier struct{ code string }

func (v acceptVerifier) VerifyTOTP(code, secret string) bool {
	return code == v.code && secret != ""
}

type testEnv struct {
	svc      *Service
	sessions *sessionrepo.MemoryRepository
	devices  *devicerepo.MemoryRepository
	factors  *mfarepo.MemoryRepository
	attempts *loginattempt.MemoryRepository
	revoked  *revocation.MemoryStore
}

// loginTime is mid-afternoon so the unusual-hour signal stays quiet unless a
// test opts in.
var loginTime = time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	env := &testEnv{
		sessions: sessionrepo.NewMemoryRepository(),
		devices:  devicerepo.NewMemoryRepository(),
		factors:  mfarepo.NewMemoryRepository(),
		attempts: loginattempt.NewMemoryRepository(),
		revoked:  revocation.NewMemoryStore(),
	}
	env.svc = NewService(
		userrepo.NewMemoryRepository(), identityrepo.NewMemoryRepository(),
		env.sessions, env.devices,
		env.factors, env.attempts,
		security.NewHasher(4), // minimum bcrypt cost keeps the tests fast
		tokens, env.revoked,
		acceptVerifier{code: "123456"}, nil,
		30*24*time.Hour, 15*time.Minute,
	)
	env.svc.nowF = func() time.Time { return loginTime }
	env.sessions.SetClock(env.svc.nowF)
	env.revoked.SetClock(env.svc.nowF)
	return env
}

func register(t *testing.T, svc *Service, email string) string {
	t.Helper()
	res, err := svc.Register(context.Background(), email, "Horse#Zvq7Lbat9Km", "Test User")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res.UserID
}

func TestRegister(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	res, err := env.svc.Register(ctx, "User@Example.com", "Horse#Zvq7Lbat9Km", "U")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.UserID == "" {
		t.Fatal("Register returned empty user id")
	}
	if res.AccessToken != "" {
		t.Fatal("Register should not issue tokens")
	}

	// Email comparison is case-insensitive.
	if _, err := env.svc.Register(ctx, "user@example.com", "Horse#Zvq7Lbat9Km", "U"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("duplicate email: err = %v, want ErrEmailAlreadyRegistered", err)
	}

	if _, err := env.svc.Register(ctx, "weak@example.com", "password1", "U"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: err = %v, want ErrWeakPassword", err)
	}
	if _, err := env.svc.Register(ctx, "not-an-email", "Horse#Zvq7Lbat9Km", "U"); err == nil {
		t.Fatal("invalid email accepted")
	}
}

func TestLoginIssuesSessionAndTokens(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	res, err := env.svc.Login(ctx, LoginInput{
		Email:    "u@example.com",
		Password: "Horse#Zvq7Lbat9Km",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.SessionID == "" {
		t.Fatalf("Login result incomplete: %+v", res)
	}
	if res.Risk == nil || res.Risk.Action != risk.ActionAllow {
		t.Fatalf("risk = %+v, want allow", res.Risk)
	}

	active, err := env.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListActiveByUser: %v", err)
	}
	if len(active) != 1 || active[0].ID != res.SessionID {
		t.Fatalf("active sessions = %+v", active)
	}
}

func TestLoginWrongPasswordRecordsAttempt(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	if _, err := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	n, _ := env.attempts.CountSince(ctx, userID, loginTime.Add(-time.Hour))
	if n != 1 {
		t.Fatalf("recorded attempts = %d, want 1", n)
	}

	// Unknown accounts fail identically.
	if _, err := env.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "x"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginBlockedAtCriticalRisk(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	register(t, env.svc, "u@example.com")

	// Three failures, an unknown device, and a fresh IP push the score to
	// 30+25+20 = 75, over the block threshold.
	for i := 0; i < 3; i++ {
		env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong", IPAddress: "203.0.113.9"})
	}
	_, err := env.svc.Login(ctx, LoginInput{
		Email:     "u@example.com",
		Password:  "Horse#Zvq7Lbat9Km",
		IPAddress: "203.0.113.9",
	})
	if !errors.Is(err, ErrLoginBlocked) {
		t.Fatalf("err = %v, want ErrLoginBlocked", err)
	}
}

func TestLoginChallengeRequiresCodeWhenEnrolled(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	backup := "aaaaa-bbbbb"
	err := env.factors.RecordConfirmed(ctx, &mfadomain.Factor{
		ID: "f1", UserID: userID, Method: mfadomain.MethodTOTP, Secret: "SECRET",
		ConfirmedAt: loginTime,
	}, []string{mfa.HashCode(backup)})
	if err != nil {
		t.Fatalf("RecordConfirmed: %v", err)
	}

	// One failure + unknown device + new IP = 10+25+20 = 55: high risk. The
	// rejected code below adds another failure but stays in the high band.
	env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong", IPAddress: "203.0.113.9"})
	challenged := LoginInput{
		Email:     "u@example.com",
		Password:  "Horse#Zvq7Lbat9Km",
		IPAddress: "203.0.113.9",
	}

	if _, err := env.svc.Login(ctx, challenged); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("no code: err = %v, want ErrMFARequired", err)
	}

	bad := challenged
	bad.MFACode = "999999"
	if _, err := env.svc.Login(ctx, bad); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("bad code: err = %v, want ErrMFACodeInvalid", err)
	}

	good := challenged
	good.MFACode = "123456"
	res, err := env.svc.Login(ctx, good)
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	if res.Risk.Action != risk.ActionMFAChallenge {
		t.Fatalf("risk action = %v, want mfa_challenge", res.Risk.Action)
	}

	// passing the challenge vouches for the device
	dev, err := env.devices.GetByFingerprint(ctx, userID, "password-login")
	if err != nil || dev == nil {
		t.Fatalf("GetByFingerprint: dev = %v, err = %v", dev, err)
	}
	if !dev.Trusted {
		t.Error("device not trusted after passed challenge")
	}
}

func TestLoginChallengeAcceptsBackupCodeOnce(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	backup := "aaaaa-bbbbb"
	env.factors.RecordConfirmed(ctx, &mfadomain.Factor{
		ID: "f1", UserID: userID, Method: mfadomain.MethodTOTP, Secret: "SECRET",
		ConfirmedAt: loginTime,
	}, []string{mfa.HashCode(backup)})

	// A successful login clears failures and registers the device, so each
	// round uses a fresh device and IP to stay in the challenge band.
	challenge := func(fingerprint, ip string) LoginInput {
		for i := 0; i < 2; i++ {
			env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong", IPAddress: ip})
		}
		return LoginInput{
			Email:             "u@example.com",
			Password:          "Horse#Zvq7Lbat9Km",
			DeviceFingerprint: fingerprint,
			IPAddress:         ip,
			MFACode:           backup,
		}
	}

	if _, err := env.svc.Login(ctx, challenge("laptop-1", "203.0.113.9")); err != nil {
		t.Fatalf("backup code: %v", err)
	}
	// The code was consumed; replaying it fails.
	if _, err := env.svc.Login(ctx, challenge("laptop-2", "198.51.100.7")); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("replayed backup code: err = %v, want ErrMFACodeInvalid", err)
	}
}

func TestLoginChallengeSkippedWithoutFactor(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	register(t, env.svc, "u@example.com")

	for i := 0; i < 2; i++ {
		env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong", IPAddress: "203.0.113.9"})
	}
	res, err := env.svc.Login(ctx, LoginInput{
		Email:     "u@example.com",
		Password:  "Horse#Zvq7Lbat9Km",
		IPAddress: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Login without enrolled factor: %v", err)
	}
	if res.Risk.Action != risk.ActionMFAChallenge {
		t.Fatalf("risk action = %v, want mfa_challenge", res.Risk.Action)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	if err := env.svc.ChangePassword(ctx, userID, "wrong", "Wm#7qhxt!Dzu"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: err = %v, want ErrInvalidCredentials", err)
	}
	if err := env.svc.ChangePassword(ctx, userID, "Horse#Zvq7Lbat9Km", "password1"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak next: err = %v, want ErrWeakPassword", err)
	}
	if err := env.svc.ChangePassword(ctx, userID, "Horse#Zvq7Lbat9Km", "Wm#7qhxt!Dzu"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "Horse#Zvq7Lbat9Km"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password after change: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "Wm#7qhxt!Dzu"}); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestRefreshRotationAndReuseDetection(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	login, err := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "Horse#Zvq7Lbat9Km"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	first, err := env.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if first.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if first.SessionID != login.SessionID {
		t.Fatal("refresh changed the session id")
	}

	// Replaying the pre-rotation token is reuse: all sessions drop.
	if _, err := env.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("err = %v, want ErrRefreshTokenReuse", err)
	}
	active, _ := env.sessions.ListActiveByUser(ctx, userID)
	if len(active) != 0 {
		t.Fatalf("active sessions after reuse = %d, want 0", len(active))
	}
	if _, err := env.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh on revoked session: err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestService(t)
	for _, token := range []string{"", "not-a-jwt"} {
		if _, err := env.svc.Refresh(context.Background(), token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%q): err = %v, want ErrInvalidRefreshToken", token, err)
		}
	}
}

func TestLogoutRevokesSessionAndTokens(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	userID := register(t, env.svc, "u@example.com")

	login, err := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "Horse#Zvq7Lbat9Km"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.Logout(ctx, userID, login.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	active, _ := env.sessions.ListActiveByUser(ctx, userID)
	if len(active) != 0 {
		t.Fatalf("active sessions = %d, want 0", len(active))
	}
	revoked, _ := env.revoked.Contains(ctx, login.SessionID)
	if !revoked {
		t.Fatal("session id not in revocation set")
	}

	// Logging out someone else's session is a no-op.
	login2, _ := env.svc.Login(ctx, LoginInput{Email: "u@example.com", Password: "Horse#Zvq7Lbat9Km"})
	if err := env.svc.Logout(ctx, "other-user", login2.SessionID); err != nil {
		t.Fatalf("foreign Logout: %v", err)
	}
	active, _ = env.sessions.ListActiveByUser(ctx, userID)
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
}
