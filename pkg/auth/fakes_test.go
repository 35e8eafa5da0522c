package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// In-memory store fakes shared by the service tests.

type fakeUserStore struct {
	mu        sync.Mutex
	byEmail   map[string]*domain.User
	lookupErr error
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*domain.User)}
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.byEmail[user.Email] = user
	return nil
}

type fakeTenantStore struct {
	mu        sync.Mutex
	bySlug    map[string]*domain.Tenant
	probeErr  error
	createErr error
	// phantom slugs pass the existence probe as absent but still fail
	// the insert, simulating a lost probe-then-insert race
	phantom map[string]bool
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{
		bySlug:  make(map[string]*domain.Tenant),
		phantom: make(map[string]bool),
	}
}

func (f *fakeTenantStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	_, ok := f.bySlug[slug]
	return ok, nil
}

func (f *fakeTenantStore) Create(ctx context.Context, tenant *domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.phantom[tenant.Slug] {
		delete(f.phantom, tenant.Slug)
		f.bySlug[tenant.Slug] = &domain.Tenant{Slug: tenant.Slug}
		return domain.ErrTenantSlugTaken
	}
	if _, ok := f.bySlug[tenant.Slug]; ok {
		return domain.ErrTenantSlugTaken
	}
	f.bySlug[tenant.Slug] = tenant
	return nil
}

func (f *fakeTenantStore) slugs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.bySlug))
	for s := range f.bySlug {
		out = append(out, s)
	}
	return out
}

type fakeMembershipStore struct {
	mu          sync.Mutex
	memberships []*domain.Membership
	tenants     map[uuid.UUID]*domain.Tenant // keyed by user ID
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (f *fakeMembershipStore) Create(ctx context.Context, membership *domain.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships = append(f.memberships, membership)
	return nil
}

func (f *fakeMembershipStore) PrimaryTenant(ctx context.Context, userID uuid.UUID) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tenants[userID]; ok {
		return t, nil
	}
	return nil, domain.ErrMembershipNotFound
}

type fakeChallengeStore struct {
	mu         sync.Mutex
	challenges []*domain.MagicLinkChallenge
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{}
}

func (f *fakeChallengeStore) Create(ctx context.Context, challenge *domain.MagicLinkChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *challenge
	f.challenges = append(f.challenges, &c)
	return nil
}

func (f *fakeChallengeStore) GetOpenByEmail(ctx context.Context, email string) (*domain.MagicLinkChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.challenges) - 1; i >= 0; i-- {
		c := f.challenges[i]
		if c.Email == email && c.ConsumedAt == nil && c.Result == domain.ChallengeResultPending {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrChallengeNotFound
}

func (f *fakeChallengeStore) MarkAnswered(ctx context.Context, id uuid.UUID, result domain.ChallengeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.challenges {
		if c.ID == id {
			if c.ConsumedAt != nil {
				return domain.ErrChallengeConsumed
			}
			now := time.Now()
			c.ConsumedAt = &now
			c.Result = result
			return nil
		}
	}
	return domain.ErrChallengeConsumed
}

func (f *fakeChallengeStore) SupersedeOpen(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.challenges {
		if c.Email == email && c.ConsumedAt == nil {
			now := time.Now()
			c.ConsumedAt = &now
		}
	}
	return nil
}

type fakeSessionStore struct {
	mu     sync.Mutex
	byHash map[string]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byHash: make(map[string]*domain.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[session.TokenHash] = session
	return nil
}

func (f *fakeSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byHash[tokenHash]; ok && s.RevokedAt == nil {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeSessionStore) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (f *fakeSessionStore) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[tokenHash]
	if !ok || s.RevokedAt != nil {
		return domain.ErrSessionNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (f *fakeSessionStore) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range f.byHash {
		if s.UserID == userID && s.RevokedAt == nil {
			revoked := now
			s.RevokedAt = &revoked
		}
	}
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []string // delivered link URLs
	sendErr error
}

func (f *fakeNotifier) SendMagicLinkEmail(to, linkURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, linkURL)
	return nil
}

var errBoom = errors.New("boom")
