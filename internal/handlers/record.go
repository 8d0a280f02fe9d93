package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moadiary/moa-backend/internal/services"
)

// maxUploadBytes bounds a single record upload (image or audio clip).
const maxUploadBytes = 10 << 20

type RecordHandler struct {
	records *services.RecordService
}

func NewRecordHandler(records *services.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// Create accepts multipart form data with an optional "context" text field and
// at most one file under "image" or "audio".
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form data is required")
		return
	}

	file, err := formFile(r, "image", "audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	view, err := h.records.Create(r.Context(), uid, strings.TrimSpace(r.FormValue("context")), file)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// List returns the caller's records, newest first.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	views, err := h.records.List(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(views),
		"records": views,
	})
}

type recordPatchRequest struct {
	Context     *string `json:"context"`
	RemoveImage bool    `json:"removeImage"`
}

// Update applies a partial update. Multipart bodies may replace the image;
// JSON bodies can edit context or drop the image.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var in services.RecordUpdateInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form data")
			return
		}
		if _, ok := r.MultipartForm.Value["context"]; ok {
			text := strings.TrimSpace(r.FormValue("context"))
			in.Context = &text
		}
		file, err := formFile(r, "image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		in.NewImage = file
	} else {
		var req recordPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		in.Context = req.Context
		in.RemoveImage = req.RemoveImage
	}

	if err := h.records.Update(r.Context(), uid, id, in); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "record updated"})
}

// Delete removes an owned record and its stored media.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := principalUID(w, r)
	if !ok {
		return
	}

	if err := h.records.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "record deleted"})
}

// formFile reads the first file present under any of the given field names.
// Returns nil when no file was uploaded.
func formFile(r *http.Request, fields ...string) (*services.FileUpload, error) {
	for _, field := range fields {
		f, header, err := r.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return &services.FileUpload{
			Filename:    header.Filename,
			ContentType: fileContentType(header),
			Data:        data,
		}, nil
	}
	return nil, nil
}

func fileContentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
