package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/middleware"
	"github.com/moadiary/moa-backend/internal/services"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// principalUID extracts the authenticated user's ObjectID. The guard runs
// before every protected handler, so a missing principal is an internal bug.
func principalUID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization Bearer token required")
		return primitive.NilObjectID, false
	}
	uid, err := primitive.ObjectIDFromHex(p.UID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token has no user id")
		return primitive.NilObjectID, false
	}
	return uid, true
}

// writeServiceError maps the shared service failure classes onto HTTP status
// codes. Unmapped errors are internal.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrNotOwner):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, services.ErrNoChanges):
		writeError(w, http.StatusBadRequest, "at least one field must be provided")
	case errors.Is(err, services.ErrUnsupportedUpload):
		writeError(w, http.StatusBadRequest, "unsupported file type")
	case errors.Is(err, services.ErrBadDate):
		writeError(w, http.StatusBadRequest, "date (YYYY-MM-DD) is required")
	case errors.Is(err, services.ErrNoRecords):
		writeError(w, http.StatusNotFound, "no records for the specified date")
	case errors.Is(err, services.ErrEmptyPayload):
		writeError(w, http.StatusBadRequest, "records contain no usable content")
	case errors.Is(err, services.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, "diary generation failed")
	case errors.Is(err, services.ErrEmptyTranscript):
		writeError(w, http.StatusBadGateway, "speech-to-text returned an empty transcript")
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
