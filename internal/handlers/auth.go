package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/moadiary/moa-backend/internal/models"
	"github.com/moadiary/moa-backend/internal/services"
	"github.com/moadiary/moa-backend/pkg/clientip"
)

// AuthAPI is the slice of the auth service the handler needs; narrowed for
// testability.
type AuthAPI interface {
	Verify(ctx context.Context, code string, meta services.SessionMeta) (*services.AuthResult, error)
	SignUp(ctx context.Context, in services.SignUpInput, meta services.SessionMeta) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta services.SessionMeta) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	auth AuthAPI
}

func NewAuthHandler(auth AuthAPI) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type verifyRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	Status       string            `json:"status"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         models.PublicUser `json:"user"`
}

type needSignupResponse struct {
	Status  string             `json:"status"`
	Prefill *services.Identity `json:"prefill"`
	Hint    string             `json:"hint"`
}

// Verify exchanges a provider auth code. Known identities get a token pair;
// unknown ones get a signup prefill and no stored record.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := h.auth.Verify(r.Context(), req.Code, sessionMeta(r))
	if err != nil {
		if errors.Is(err, services.ErrIdentityInvalid) {
			writeError(w, http.StatusUnauthorized, "identity verification failed")
			return
		}
		writeServiceError(w, err)
		return
	}

	if result.Status == services.StatusNeedSignup {
		writeJSON(w, http.StatusOK, needSignupResponse{
			Status:  result.Status,
			Prefill: result.Prefill,
			Hint:    result.Hint,
		})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Status:       result.Status,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User.Public(),
	})
}

type signUpRequest struct {
	ProviderID string `json:"providerID"`
	Nickname   string `json:"nickname"`
	Birthdate  string `json:"birthdate,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Picture    string `json:"picture,omitempty"`
}

// SignUp completes the two-phase registration started by Verify.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "providerID is required")
		return
	}

	result, err := h.auth.SignUp(r.Context(), services.SignUpInput{
		ProviderID: req.ProviderID,
		Nickname:   req.Nickname,
		Birthdate:  req.Birthdate,
		Gender:     req.Gender,
		Email:      req.Email,
		Name:       req.Name,
		Picture:    req.Picture,
	}, sessionMeta(r))
	if err != nil {
		if errors.Is(err, services.ErrAlreadyRegistered) {
			writeError(w, http.StatusConflict, "already registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, loginResponse{
		Status:       result.Status,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User.Public(),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates a refresh token. A replayed token always fails: rotation
// revoked its session the first time.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenLegacy):
			writeError(w, http.StatusUnauthorized, "unsupported token format; please log in again")
		case errors.Is(err, services.ErrTokenExpired), errors.Is(err, services.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, services.ErrSessionRevoked):
			writeError(w, http.StatusUnauthorized, "refresh token has been revoked")
		case errors.Is(err, services.ErrSessionExpired):
			writeError(w, http.StatusUnauthorized, "refresh token has expired")
		case errors.Is(err, services.ErrNotFound):
			// ErrNotFound from refresh means the user record is gone.
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeServiceError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Logout revokes the presented refresh token's session. Revoking twice is a
// no-op success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, services.ErrTokenInvalid),
			errors.Is(err, services.ErrTokenExpired),
			errors.Is(err, services.ErrTokenLegacy):
			writeError(w, http.StatusBadRequest, "invalid refresh token")
		default:
			// Verification passed but the revocation write failed; the
			// client should retry rather than discard the token.
			writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func sessionMeta(r *http.Request) services.SessionMeta {
	return services.SessionMeta{
		IP:        clientip.RealClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
