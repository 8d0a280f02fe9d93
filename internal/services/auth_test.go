package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUserRepo) FindByProvider(_ context.Context, provider, providerID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[provider+"/"+providerID]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := u.Provider + "/" + u.ProviderID
	if _, exists := f.users[key]; exists {
		return ErrAlreadyRegistered
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[key] = u
	return nil
}

func (f *fakeUserRepo) TouchLastLogin(_ context.Context, id primitive.ObjectID) error {
	return nil
}

func (f *fakeUserRepo) delete(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, u.Provider+"/"+u.ProviderID)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	failNext bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.Session{}}
}

func (f *fakeSessionRepo) Create(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("store unavailable")
	}
	cp := *s
	f.sessions[s.JTI] = &cp
	return nil
}

func (f *fakeSessionRepo) FindByJTI(_ context.Context, jti string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[jti]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) Revoke(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[jti]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.RevokedAt = &now
	return true, nil
}

type fakeIdentityProvider struct {
	identity *Identity
	err      error
}

func (f *fakeIdentityProvider) Exchange(context.Context, string) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func newTestAuth(t *testing.T) (*AuthService, *fakeUserRepo, *fakeSessionRepo, *fakeIdentityProvider) {
	t.Helper()
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	idp := &fakeIdentityProvider{identity: &Identity{
		Provider:   "google",
		ProviderID: "sub-123",
		Email:      "mina@example.com",
		Name:       "Mina",
	}}
	auth := NewAuthService(users, sessions, NewTokenIssuer("access-secret", "refresh-secret"), idp, slog.Default())
	return auth, users, sessions, idp
}

func TestVerifyUnknownIdentityNeedsSignup(t *testing.T) {
	auth, _, sessions, idp := newTestAuth(t)

	result, err := auth.Verify(context.Background(), "auth-code", SessionMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusNeedSignup, result.Status)
	assert.Empty(t, result.AccessToken)
	require.NotNil(t, result.Prefill)
	assert.Equal(t, idp.identity.Email, result.Prefill.Email)
	assert.Equal(t, "sub-123", result.Hint)
	assert.Empty(t, sessions.sessions, "no session should exist before signup")
}

func TestSignUpThenVerifyLogsIn(t *testing.T) {
	auth, _, sessions, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123", Nickname: "mina", Email: "mina@example.com"}, SessionMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, reg.Status)
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotEmpty(t, reg.RefreshToken)
	assert.Len(t, sessions.sessions, 1)

	login, err := auth.Verify(ctx, "auth-code", SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusLogin, login.Status)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.Len(t, sessions.sessions, 2)
}

func TestSignUpDuplicateFails(t *testing.T) {
	auth, _, _, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	_, err = auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestVerifyExchangeFailure(t *testing.T) {
	auth, _, _, idp := newTestAuth(t)
	idp.err = ErrIdentityInvalid

	_, err := auth.Verify(context.Background(), "bad-code", SessionMeta{})
	assert.ErrorIs(t, err, ErrIdentityInvalid)
}

func TestRefreshRotatesExactlyOnce(t *testing.T) {
	auth, _, sessions, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)
	first := reg.RefreshToken

	rotated, err := auth.Refresh(ctx, first, SessionMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, first, rotated.RefreshToken)

	// The replacement is live, the presented token is spent.
	assert.Len(t, sessions.sessions, 2)

	_, err = auth.Refresh(ctx, first, SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// The rotated token still works.
	_, err = auth.Refresh(ctx, rotated.RefreshToken, SessionMeta{})
	assert.NoError(t, err)
}

func TestRefreshExpiredSession(t *testing.T) {
	auth, _, sessions, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	for _, s := range sessions.sessions {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	}

	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRefreshUnknownSession(t *testing.T) {
	auth, _, sessions, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	// Simulate the session row disappearing out from under a valid token.
	for jti := range sessions.sessions {
		delete(sessions.sessions, jti)
	}

	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefreshUserGone(t *testing.T) {
	auth, users, _, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	users.delete(reg.User)

	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshFailsClosedOnStoreError(t *testing.T) {
	auth, _, sessions, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	// Issuing the replacement fails; the presented token must stay spent.
	sessions.failNext = true
	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	require.Error(t, err)

	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	auth, _, _, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.SignUp(ctx, SignUpInput{ProviderID: "sub-123"}, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, reg.RefreshToken))
	require.NoError(t, auth.Logout(ctx, reg.RefreshToken))

	_, err = auth.Refresh(ctx, reg.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutRejectsGarbage(t *testing.T) {
	auth, _, _, _ := newTestAuth(t)
	err := auth.Logout(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
