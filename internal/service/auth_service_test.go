package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/contacts-api/internal/model"
	"github.com/iliyamo/contacts-api/internal/queue"
	"github.com/iliyamo/contacts-api/internal/repository"
	"github.com/iliyamo/contacts-api/internal/utils"
)

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	nextID uint64
	byID   map[uint64]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, username, email, passwordHash string, avatar *string) (uint64, error) {
	f.nextID++
	now := time.Now().UTC()
	f.byID[f.nextID] = model.User{
		ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash,
		Role: model.RoleUser, Confirmed: false, Avatar: avatar, CreatedAt: now, UpdatedAt: now,
	}
	return f.nextID, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ConfirmEmail(_ context.Context, email string) error {
	for id, u := range f.byID {
		if u.Email == email {
			u.Confirmed = true
			f.byID[id] = u
			return nil
		}
	}
	return nil
}

// fakeTokens is an in-memory TokenStore keyed by token hash.
type fakeTokens struct {
	rows map[string]*model.RefreshToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{rows: map[string]*model.RefreshToken{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, expiredAt time.Time, ip, userAgent *string) error {
	f.rows[tokenHash] = &model.RefreshToken{
		ID: uint64(len(f.rows) + 1), UserID: userID, TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(), ExpiredAt: expiredAt, IPAddress: ip, UserAgent: userAgent,
	}
	return nil
}

func (f *fakeTokens) GetActive(_ context.Context, tokenHash string, now time.Time) (model.RefreshToken, error) {
	row, ok := f.rows[tokenHash]
	if !ok || !row.Active(now) {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return *row, nil
}

func (f *fakeTokens) GetByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	row, ok := f.rows[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return *row, nil
}

func (f *fakeTokens) Revoke(_ context.Context, tokenHash string, now time.Time) error {
	if row, ok := f.rows[tokenHash]; ok && row.RevokedAt == nil {
		row.RevokedAt = &now
	}
	return nil
}

// fakeLedger is an in-memory Denylist.
type fakeLedger struct {
	denied map[string]time.Duration
}

func newFakeLedger() *fakeLedger { return &fakeLedger{denied: map[string]time.Duration{}} }

func (f *fakeLedger) Deny(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	f.denied[token] = ttl
	return nil
}

func (f *fakeLedger) IsDenied(_ context.Context, token string) (bool, error) {
	_, ok := f.denied[token]
	return ok, nil
}

type testRig struct {
	svc    *AuthService
	users  *fakeUsers
	tokens *fakeTokens
	ledger *fakeLedger
	events []queue.ConfirmationEmailEvent
}

func newTestRig(mutate func(*AuthConfig)) *testRig {
	cfg := AuthConfig{
		JWTSecret:         "test-secret",
		AccessTTLMin:      15,
		RefreshTTLDays:    7,
		EmailTokenTTLDays: 7,
		BcryptCost:        bcrypt.MinCost,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	rig := &testRig{users: newFakeUsers(), tokens: newFakeTokens(), ledger: newFakeLedger()}
	rig.svc = NewAuthService(cfg, rig.users, rig.tokens, rig.ledger,
		func(_ context.Context, ev queue.ConfirmationEmailEvent) error {
			rig.events = append(rig.events, ev)
			return nil
		})
	return rig
}

// TestSessionLifecycle walks a user through register, confirm, login,
// refresh and logout, checking every gate along the way.
func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	u, err := rig.svc.Register(ctx, "alice", "Alice@Example.Com ", "s3cretpw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email, "email is stored normalized")
	assert.False(t, u.Confirmed)
	require.NotNil(t, u.Avatar)

	// Unconfirmed accounts cannot log in even with the right password.
	_, err = rig.svc.Authenticate(ctx, "alice", "s3cretpw")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	// Registration published exactly one confirmation event; its token
	// is what the email link would carry.
	require.Len(t, rig.events, 1)
	assert.Equal(t, "alice@example.com", rig.events[0].Email)
	already, err := rig.svc.ConfirmEmail(ctx, rig.events[0].Token)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = rig.svc.ConfirmEmail(ctx, rig.events[0].Token)
	require.NoError(t, err)
	assert.True(t, already, "second confirmation is a no-op")

	u, err = rig.svc.Authenticate(ctx, "alice", "s3cretpw")
	require.NoError(t, err)
	assert.True(t, u.Confirmed)

	pair, err := rig.svc.IssueTokenPair(ctx, u, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// Only the hash of the refresh secret may reach the store.
	_, ok := rig.tokens.rows[pair.RefreshToken]
	assert.False(t, ok)
	_, ok = rig.tokens.rows[utils.HashRefreshRaw(pair.RefreshToken)]
	assert.True(t, ok)

	got, err := rig.svc.ResolveCurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	next, nu, err := rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, u.ID, nu.ID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	require.NoError(t, rig.svc.Logout(ctx, next.AccessToken, next.RefreshToken))

	_, err = rig.svc.ResolveCurrentUser(ctx, next.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = rig.svc.Rotate(ctx, next.RefreshToken, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Logging out again must not error.
	assert.NoError(t, rig.svc.Logout(ctx, next.AccessToken, next.RefreshToken))
}

func TestAuthenticateHidesWhichHalfWasWrong(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	_, err := rig.svc.Register(ctx, "bob", "bob@x.com", "correcthorse")
	require.NoError(t, err)
	require.NoError(t, rig.users.ConfirmEmail(ctx, "bob@x.com"))

	_, errUnknown := rig.svc.Authenticate(ctx, "nobody", "correcthorse")
	_, errWrongPw := rig.svc.Authenticate(ctx, "bob", "wrongpw")
	assert.ErrorIs(t, errUnknown, ErrWrongCredentials)
	assert.ErrorIs(t, errWrongPw, ErrWrongCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestRegisterConflicts(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	_, err := rig.svc.Register(ctx, "carol", "carol@x.com", "pw123456")
	require.NoError(t, err)

	_, err = rig.svc.Register(ctx, "carol", "other@x.com", "pw123456")
	assert.ErrorIs(t, err, repository.ErrUsernameExists)

	_, err = rig.svc.Register(ctx, "other", "carol@x.com", "pw123456")
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestRotateRejectsExpiredSecret(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(func(cfg *AuthConfig) { cfg.RefreshTTLDays = 0 })

	u := registerConfirmed(t, rig, "dave", "dave@x.com")
	pair, err := rig.svc.IssueTokenPair(ctx, u, nil, nil)
	require.NoError(t, err)

	// A zero-day lifetime expires the secret at issuance, so the strict
	// expiry check must refuse it immediately.
	_, _, err = rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRejectsRevokedSecret(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	u := registerConfirmed(t, rig, "erin", "erin@x.com")
	pair, err := rig.svc.IssueTokenPair(ctx, u, nil, nil)
	require.NoError(t, err)

	require.NoError(t, rig.tokens.Revoke(ctx, utils.HashRefreshRaw(pair.RefreshToken), time.Now().UTC()))

	_, _, err = rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateLeavesOldSecretUsableByDefault(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	u := registerConfirmed(t, rig, "frank", "frank@x.com")
	pair, err := rig.svc.IssueTokenPair(ctx, u, nil, nil)
	require.NoError(t, err)

	_, _, err = rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	require.NoError(t, err)
	_, _, err = rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	assert.NoError(t, err, "the exchanged secret stays valid until it expires")
}

func TestRotateRevokesOldWhenConfigured(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(func(cfg *AuthConfig) { cfg.RotateRevokesOld = true })

	u := registerConfirmed(t, rig, "grace", "grace@x.com")
	pair, err := rig.svc.IssueTokenPair(ctx, u, nil, nil)
	require.NoError(t, err)

	next, _, err := rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	require.NoError(t, err)

	_, _, err = rig.svc.Rotate(ctx, pair.RefreshToken, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = rig.svc.Rotate(ctx, next.RefreshToken, nil, nil)
	assert.NoError(t, err, "the replacement secret is unaffected")
}

func TestLogoutIgnoresUnusableAccessToken(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	require.NoError(t, rig.svc.Logout(ctx, "not-a-jwt", ""))
	assert.Empty(t, rig.ledger.denied, "garbage tokens never enter the ledger")
}

func TestConfirmEmailRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	_, err := rig.svc.ConfirmEmail(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A valid token for an address no one registered with.
	tok, err := utils.NewEmailToken("test-secret", "ghost@x.com", 7)
	require.NoError(t, err)
	_, err = rig.svc.ConfirmEmail(ctx, tok)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRequestConfirmEmail(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(nil)

	_, err := rig.svc.RequestConfirmEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = rig.svc.Register(ctx, "heidi", "heidi@x.com", "pw123456")
	require.NoError(t, err)
	sent := len(rig.events)

	already, err := rig.svc.RequestConfirmEmail(ctx, "heidi@x.com")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Len(t, rig.events, sent+1, "resend publishes a fresh event")

	require.NoError(t, rig.users.ConfirmEmail(ctx, "heidi@x.com"))
	already, err = rig.svc.RequestConfirmEmail(ctx, "heidi@x.com")
	require.NoError(t, err)
	assert.True(t, already)
	assert.Len(t, rig.events, sent+1, "confirmed accounts get nothing")
}

func registerConfirmed(t *testing.T, rig *testRig, username, email string) model.User {
	t.Helper()
	ctx := context.Background()
	u, err := rig.svc.Register(ctx, username, email, "pw123456")
	require.NoError(t, err)
	require.NoError(t, rig.users.ConfirmEmail(ctx, email))
	u, err = rig.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	return u
}
