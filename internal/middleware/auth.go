package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/moadiary/moa-backend/internal/services"
)

// Principal is the verified identity derived from the access token. Its UID
// is the sole source of ownership scoping; handlers never trust
// client-supplied user identifiers.
type Principal struct {
	UID        string
	Provider   string
	ProviderID string
}

type contextKey int

const principalKey contextKey = 0

// Auth failure codes let clients distinguish "re-login needed" from other
// verification failures.
const (
	CodeNoBearer     = "NO_BEARER"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

type authError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Auth validates the bearer access token and stores the Principal in the
// request context. Any failure rejects the request before the handler runs.
func Auth(tokens *services.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_request"`)
				writeAuthError(w, authError{Message: "Authorization Bearer token required", Code: CodeNoBearer})
				return
			}

			claims, err := tokens.VerifyAccess(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				if errors.Is(err, services.ErrTokenExpired) {
					w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="expired"`)
					writeAuthError(w, authError{Message: "access token expired", Code: CodeTokenExpired})
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="invalid signature or malformed"`)
				writeAuthError(w, authError{Message: "invalid access token", Code: CodeTokenInvalid})
				return
			}

			principal := Principal{
				UID:        claims.UID,
				Provider:   claims.Provider,
				ProviderID: claims.ProviderID,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
		})
	}
}

// PrincipalFrom returns the Principal stored by Auth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func writeAuthError(w http.ResponseWriter, e authError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(e)
}
