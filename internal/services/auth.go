package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moadiary/moa-backend/internal/models"
)

// Auth statuses returned by the entry points.
const (
	StatusLogin      = "login"
	StatusNeedSignup = "need-signup"
	StatusRegistered = "registered"
)

// AuthResult is the outcome of verify/signup: either an authenticated user
// with a fresh token pair, or a signup prefill for unknown identities.
type AuthResult struct {
	Status       string
	AccessToken  string
	RefreshToken string
	User         *models.User

	// Set only for need-signup: provider profile to prefill the signup form,
	// and the stable provider subject to send back on signup completion.
	Prefill *Identity
	Hint    string
}

// SignUpInput is the two-phase signup completion payload. ProviderID must be
// the hint returned by Verify; the rest is self-reported or prefill.
type SignUpInput struct {
	ProviderID string
	Nickname   string
	Birthdate  string
	Gender     string
	Email      string
	Name       string
	Picture    string
}

// AuthService owns the session/token lifecycle: identity verification,
// two-phase signup, refresh-token rotation and logout.
type AuthService struct {
	users    UserRepo
	sessions SessionRepo
	tokens   *TokenIssuer
	idp      IdentityProvider
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(users UserRepo, sessions SessionRepo, tokens *TokenIssuer, idp IdentityProvider, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		idp:      idp,
		log:      log,
		now:      time.Now,
	}
}

// Verify exchanges the provider auth code and either logs the user in or
// returns a signup prefill. No user record is created for unknown identities.
func (a *AuthService) Verify(ctx context.Context, code string, meta SessionMeta) (*AuthResult, error) {
	identity, err := a.idp.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindByProvider(ctx, identity.Provider, identity.ProviderID)
	if errors.Is(err, ErrNotFound) {
		return &AuthResult{
			Status:  StatusNeedSignup,
			Prefill: identity,
			Hint:    identity.ProviderID,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result, err := a.issuePair(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	result.Status = StatusLogin

	if err := a.users.TouchLastLogin(ctx, user.ID); err != nil {
		a.log.Warn("failed to update last login", "uid", user.ID.Hex(), "error", err)
	}
	return result, nil
}

// SignUp completes registration for a verified identity. Fails with
// ErrAlreadyRegistered when a user already exists for the provider subject.
func (a *AuthService) SignUp(ctx context.Context, in SignUpInput, meta SessionMeta) (*AuthResult, error) {
	user := &models.User{
		Provider:   "google",
		ProviderID: in.ProviderID,
		Email:      in.Email,
		Name:       in.Name,
		Picture:    in.Picture,
		Nickname:   in.Nickname,
		Birthdate:  in.Birthdate,
		Gender:     in.Gender,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := a.issuePair(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	result.Status = StatusRegistered
	return result, nil
}

// Refresh rotates a refresh token. The presented session is revoked before
// replacements are issued, so rotation fails closed: even if the new issuance
// fails, the old token is spent. Exactly one rotation per token can succeed;
// a replay observes the revocation and is rejected.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*AuthResult, error) {
	claims, err := a.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.FindByJTI(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		// Valid signature but no session row: treat like a spent token.
		return nil, ErrSessionRevoked
	}
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if !a.now().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	revoked, err := a.sessions.Revoke(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !revoked {
		// Lost the race against a concurrent rotation of the same token.
		return nil, ErrSessionRevoked
	}

	user, err := a.users.FindByID(ctx, claims.UID)
	if err != nil {
		return nil, err
	}

	result, err := a.issuePair(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	result.Status = StatusLogin
	return result, nil
}

// Logout revokes the session behind the refresh token. Revoking an already
// revoked session is a no-op success.
func (a *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := a.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return err
	}
	if _, err := a.sessions.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (a *AuthService) issuePair(ctx context.Context, user *models.User, meta SessionMeta) (*AuthResult, error) {
	access, err := a.tokens.IssueAccess(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := a.tokens.IssueRefresh(ctx, user, a.sessions, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}
