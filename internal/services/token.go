package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

const (
	// AccessTokenTTL bounds the exposure window of a leaked access token;
	// access tokens are stateless and cannot be revoked early.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL matches the session row's expiresAt.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// refreshLeeway tolerates clock skew between issuer and verifier.
	refreshLeeway = 60 * time.Second
)

// Claims carried by both token kinds. Refresh tokens additionally set
// RegisteredClaims.ID to the session jti; access tokens leave it empty.
type Claims struct {
	UID        string `json:"uid"`
	Provider   string `json:"provider"`
	ProviderID string `json:"providerID"`
	jwt.RegisteredClaims
}

// SessionMeta is request metadata persisted with a new session.
type SessionMeta struct {
	IP        string
	UserAgent string
}

// TokenIssuer mints and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

// IssueAccess mints a short-lived stateless access token for the user.
func (t *TokenIssuer) IssueAccess(u *models.User) (string, error) {
	now := t.now()
	claims := Claims{
		UID:        u.ID.Hex(),
		Provider:   u.Provider,
		ProviderID: u.ProviderID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
}

// IssueRefresh mints a refresh token bound to a fresh session row. The session
// is persisted before the token is returned; a store-write failure propagates.
func (t *TokenIssuer) IssueRefresh(ctx context.Context, u *models.User, sessions SessionRepo, meta SessionMeta) (string, error) {
	jti := uuid.NewString()
	now := t.now()
	expiresAt := now.Add(RefreshTokenTTL)

	claims := Claims{
		UID:        u.ID.Hex(),
		Provider:   u.Provider,
		ProviderID: u.ProviderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	session := &models.Session{
		ID:        primitive.NewObjectID(),
		UserID:    u.ID,
		JTI:       jti,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		RevokedAt: nil,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}

	return token, nil
}

// VerifyAccess validates an access token and returns its claims.
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, t.accessSecret, 0)
}

// VerifyRefresh validates a refresh token with clock-skew leeway and requires
// both uid and jti claims; tokens lacking either are a legacy format.
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	claims, err := t.verify(token, t.refreshSecret, refreshLeeway)
	if err != nil {
		return nil, err
	}
	if claims.UID == "" || claims.ID == "" {
		return nil, ErrTokenLegacy
	}
	return claims, nil
}

func (t *TokenIssuer) verify(token string, secret []byte, leeway time.Duration) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if leeway > 0 {
		opts = append(opts, jwt.WithLeeway(leeway))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
