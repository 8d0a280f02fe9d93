package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moadiary/moa-backend/internal/services"
)

type TodoHandler struct {
	todos *services.TodoService
}

func NewTodoHandler(todos *services.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type todoCreateRequest struct {
	Context string `json:"context"`
	Date    string `json:"date"`
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	var req todoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Context = strings.TrimSpace(req.Context)
	if req.Context == "" {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}

	todo, err := h.todos.Create(r.Context(), uid, req.Context, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	todos, err := h.todos.List(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(todos),
		"todos": todos,
	})
}

type todoPatchRequest struct {
	Context *string `json:"context"`
	Date    *string `json:"date"`
	Done    *bool   `json:"done"`
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	var req todoPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.todos.Update(r.Context(), uid, chi.URLParam(r, "id"), services.TodoUpdateInput{
		Context: req.Context,
		Date:    req.Date,
		Done:    req.Done,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "todo updated"})
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	if err := h.todos.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "todo deleted"})
}
