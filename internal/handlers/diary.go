package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moadiary/moa-backend/internal/models"
	"github.com/moadiary/moa-backend/internal/services"
)

type DiaryHandler struct {
	diaries *services.DiaryService
}

func NewDiaryHandler(diaries *services.DiaryService) *DiaryHandler {
	return &DiaryHandler{diaries: diaries}
}

type diaryCreateRequest struct {
	Date    string `json:"date"`
	Persona int    `json:"persona"`
}

// Create generates a diary from the day's records. An omitted date means
// today; repeat calls for the same day produce additional diaries.
func (h *DiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	var req diaryCreateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	view, err := h.diaries.Create(r.Context(), uid, req.Date, req.Persona)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get returns a single owned diary.
func (h *DiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	view, err := h.diaries.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List returns all the caller's diaries with expanded source records.
func (h *DiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	entries, err := h.diaries.List(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"diaries": entries,
	})
}

type diaryPatchRequest struct {
	Text    *string             `json:"text"`
	Persona *int                `json:"persona"`
	Emotion *string             `json:"emotion"`
	Images  []models.DiaryImage `json:"images"`
}

// Update applies a partial edit to an owned diary.
func (h *DiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	var req diaryPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.diaries.Update(r.Context(), uid, chi.URLParam(r, "id"), services.DiaryUpdateInput{
		Text:    req.Text,
		Persona: req.Persona,
		Emotion: req.Emotion,
		Images:  req.Images,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "diary updated"})
}
