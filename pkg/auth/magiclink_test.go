package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

type magicLinkFixture struct {
	svc         *MagicLinkService
	users       *fakeUserStore
	tenants     *fakeTenantStore
	memberships *fakeMembershipStore
	challenges  *fakeChallengeStore
	sessions    *fakeSessionStore
	notifier    *fakeNotifier
}

func newMagicLinkFixture(t *testing.T) *magicLinkFixture {
	t.Helper()
	users := newFakeUserStore()
	tenants := newFakeTenantStore()
	memberships := newFakeMembershipStore()
	challenges := newFakeChallengeStore()
	sessions := newFakeSessionStore()
	notifier := &fakeNotifier{}

	sessionSvc := NewSessionService(SessionConfig{
		JWTSecret: []byte("test-secret"),
		Issuer:    "gatherly-auth-test",
	}, sessions, users, memberships)
	provisioner := NewProvisioningService(tenants, memberships, discardLogger())
	issuer := NewChallengeIssuer("https://app.example.com", notifier, discardLogger())

	svc := NewMagicLinkService(MagicLinkConfig{}, users, challenges, issuer, sessionSvc, provisioner, discardLogger())
	return &magicLinkFixture{
		svc:         svc,
		users:       users,
		tenants:     tenants,
		memberships: memberships,
		challenges:  challenges,
		sessions:    sessions,
		notifier:    notifier,
	}
}

// lastCode extracts the secret code from the most recently delivered link.
func (f *magicLinkFixture) lastCode(t *testing.T) string {
	t.Helper()
	if len(f.notifier.sent) == 0 {
		t.Fatal("no magic link was delivered")
	}
	u, err := url.Parse(f.notifier.sent[len(f.notifier.sent)-1])
	if err != nil {
		t.Fatalf("delivered link does not parse: %v", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatalf("delivered link %q carries no code", u)
	}
	return code
}

func TestPreSignUpFirstSignIn(t *testing.T) {
	f := newMagicLinkFixture(t)

	out, err := f.svc.PreSignUp(context.Background(), PreSignUpInput{
		UserAttributes: UserAttributes{Email: "Alice@Example.com", Name: "Alice"},
	})
	if err != nil {
		t.Fatalf("PreSignUp() error = %v", err)
	}
	if !out.AutoConfirmUser || !out.AutoVerifyEmail {
		t.Errorf("PreSignUp() = %+v, want auto-confirm and auto-verify", out)
	}

	user, err := f.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("user was not created under the normalized email: %v", err)
	}
	if !user.EmailVerified {
		t.Error("created user not marked email-verified")
	}

	slugs := f.tenants.slugs()
	if len(slugs) != 1 || slugs[0] != "alice" {
		t.Errorf("provisioned slugs = %v, want [alice]", slugs)
	}
}

func TestPreSignUpExistingUserPassesThrough(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.users.byEmail["alice@example.com"] = newTestUser("alice@example.com")

	out, err := f.svc.PreSignUp(context.Background(), PreSignUpInput{
		UserAttributes: UserAttributes{Email: "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("PreSignUp() error = %v", err)
	}
	if out.AutoConfirmUser || out.AutoVerifyEmail {
		t.Errorf("PreSignUp() = %+v, want zero output for a known identity", out)
	}
	if len(f.tenants.slugs()) != 0 {
		t.Errorf("tenant provisioned for an existing identity: %v", f.tenants.slugs())
	}
}

func TestPreSignUpLookupErrorIsFatal(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.users.lookupErr = errBoom

	_, err := f.svc.PreSignUp(context.Background(), PreSignUpInput{
		UserAttributes: UserAttributes{Email: "alice@example.com"},
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("PreSignUp() error = %v, want the lookup error propagated", err)
	}
	if len(f.users.byEmail) != 0 {
		t.Error("user created despite a failed identity lookup")
	}
}

func TestPreSignUpLostCreateRacePassesThrough(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.users.createErr = domain.ErrUserAlreadyExists

	out, err := f.svc.PreSignUp(context.Background(), PreSignUpInput{
		UserAttributes: UserAttributes{Email: "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("PreSignUp() error = %v, want nil when the insert loses a race", err)
	}
	if out.AutoConfirmUser {
		t.Error("race loser should take the existing-identity path")
	}
}

func TestPreSignUpProvisioningFailureIsAbsorbed(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.tenants.probeErr = errBoom

	out, err := f.svc.PreSignUp(context.Background(), PreSignUpInput{
		UserAttributes: UserAttributes{Email: "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("PreSignUp() error = %v, want nil when only provisioning fails", err)
	}
	if !out.AutoConfirmUser {
		t.Error("sign-up not confirmed after a provisioning failure")
	}
	if _, err := f.users.GetByEmail(context.Background(), "alice@example.com"); err != nil {
		t.Errorf("user missing after a provisioning failure: %v", err)
	}
}

func TestRequestLinkRejectsInvalidEmail(t *testing.T) {
	f := newMagicLinkFixture(t)

	err := f.svc.RequestLink(context.Background(), "not-an-email", "")
	if !errors.Is(err, domain.ErrInvalidEmail) {
		t.Errorf("RequestLink() error = %v, want ErrInvalidEmail", err)
	}
}

func TestRequestLinkStoresHashedChallenge(t *testing.T) {
	f := newMagicLinkFixture(t)

	if err := f.svc.RequestLink(context.Background(), "alice@example.com", "Alice"); err != nil {
		t.Fatalf("RequestLink() error = %v", err)
	}

	code := f.lastCode(t)
	challenge, err := f.challenges.GetOpenByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("no open challenge stored: %v", err)
	}
	if challenge.CodeHash == code {
		t.Error("challenge stores the plaintext secret")
	}
	if challenge.CodeHash != HashToken(code) {
		t.Error("stored hash does not match the delivered code")
	}
	if got := time.Until(challenge.ExpiresAt); got < 14*time.Minute || got > 16*time.Minute {
		t.Errorf("challenge expiry %v from now, want about 15m", got.Round(time.Minute))
	}
}

func TestRequestLinkSupersedesOpenChallenge(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("first RequestLink() error = %v", err)
	}
	firstCode := f.lastCode(t)

	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("second RequestLink() error = %v", err)
	}

	// The first link is dead; only the second verifies.
	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", firstCode, IssueSessionOpts{}); !errors.Is(err, domain.ErrChallengeRejected) {
		t.Errorf("first link verification error = %v, want ErrChallengeRejected", err)
	}
	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("third RequestLink() error = %v", err)
	}
	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", f.lastCode(t), IssueSessionOpts{}); err != nil {
		t.Errorf("latest link verification error = %v, want success", err)
	}
}

func TestVerifyLinkHappyPath(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLink(ctx, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("RequestLink() error = %v", err)
	}

	tokens, err := f.svc.VerifyLink(ctx, "alice@example.com", f.lastCode(t), IssueSessionOpts{})
	if err != nil {
		t.Fatalf("VerifyLink() error = %v", err)
	}
	if tokens.AccessToken == "" || tokens.IDToken == "" || tokens.RefreshToken == "" {
		t.Errorf("token set incomplete: %+v", tokens)
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", tokens.TokenType)
	}
	if len(f.sessions.byHash) != 1 {
		t.Errorf("sessions created = %d, want 1", len(f.sessions.byHash))
	}
}

func TestVerifyLinkWrongCodeRejects(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestLink() error = %v", err)
	}
	code := f.lastCode(t)

	wrong := strings.Repeat("x", len(code))
	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", wrong, IssueSessionOpts{}); !errors.Is(err, domain.ErrChallengeRejected) {
		t.Fatalf("VerifyLink() error = %v, want ErrChallengeRejected", err)
	}

	// The wrong guess consumed the challenge: the real code is dead too.
	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", code, IssueSessionOpts{}); !errors.Is(err, domain.ErrChallengeRejected) {
		t.Errorf("second VerifyLink() error = %v, want ErrChallengeRejected after a consumed guess", err)
	}
}

func TestVerifyLinkIsSingleUse(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestLink() error = %v", err)
	}
	code := f.lastCode(t)

	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", code, IssueSessionOpts{}); err != nil {
		t.Fatalf("first VerifyLink() error = %v", err)
	}
	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", code, IssueSessionOpts{}); !errors.Is(err, domain.ErrChallengeRejected) {
		t.Errorf("replayed VerifyLink() error = %v, want ErrChallengeRejected", err)
	}
}

func TestVerifyLinkExpiredChallenge(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestLink(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("RequestLink() error = %v", err)
	}
	code := f.lastCode(t)

	// Age the stored challenge past its TTL.
	f.challenges.mu.Lock()
	for _, c := range f.challenges.challenges {
		c.ExpiresAt = time.Now().Add(-time.Minute)
	}
	f.challenges.mu.Unlock()

	if _, err := f.svc.VerifyLink(ctx, "alice@example.com", code, IssueSessionOpts{}); !errors.Is(err, domain.ErrChallengeExpired) {
		t.Errorf("VerifyLink() error = %v, want ErrChallengeExpired", err)
	}
}

func TestVerifyLinkNoOpenChallenge(t *testing.T) {
	f := newMagicLinkFixture(t)

	_, err := f.svc.VerifyLink(context.Background(), "alice@example.com", "whatever", IssueSessionOpts{})
	if !errors.Is(err, domain.ErrChallengeRejected) {
		t.Errorf("VerifyLink() error = %v, want ErrChallengeRejected", err)
	}
}
