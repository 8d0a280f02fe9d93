package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

// FileUpload is one parsed multipart file.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RecordView is the API representation of a record, with the image URL
// re-resolved at read time.
type RecordView struct {
	ID        string            `json:"id"`
	Type      models.RecordType `json:"type"`
	Context   *string           `json:"context"`
	ImageURL  *string           `json:"imageUrl"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RecordService owns record ingestion and CRUD, including media upload and
// the synchronous audio-to-text path.
type RecordService struct {
	repo    RecordRepo
	storage ObjectStorage
	stt     Transcriber
	log     *slog.Logger
}

func NewRecordService(repo RecordRepo, storage ObjectStorage, stt Transcriber, log *slog.Logger) *RecordService {
	return &RecordService{
		repo:    repo,
		storage: storage,
		stt:     stt,
		log:     log,
	}
}

// Create ingests a submission. Image files are stored and referenced by key;
// audio files are transcribed synchronously and persisted as plain text with
// no media reference. At least one of context or file must be present.
func (s *RecordService) Create(ctx context.Context, uid primitive.ObjectID, contextText string, file *FileUpload) (*RecordView, error) {
	now := time.Now()
	record := models.Record{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Context:   contextText,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch {
	case file == nil:
		if contextText == "" {
			return nil, fmt.Errorf("%w: text or file required", ErrNoChanges)
		}
		record.Type = models.RecordText

	case strings.HasPrefix(file.ContentType, "audio/"):
		transcript, err := s.stt.Transcribe(ctx, file.Filename, file.ContentType, file.Data)
		if err != nil {
			return nil, fmt.Errorf("transcribe audio: %w", err)
		}
		if transcript == "" {
			return nil, ErrEmptyTranscript
		}
		record.Type = models.RecordText
		if contextText != "" {
			record.Context = contextText + "\n" + transcript
		} else {
			record.Context = transcript
		}

	case strings.HasPrefix(file.ContentType, "image/"):
		key := s.objectKey(uid, file.Filename)
		if err := s.storage.Upload(ctx, key, file.ContentType, file.Data); err != nil {
			return nil, err
		}
		record.Media = &models.Media{
			Key:         key,
			ContentType: file.ContentType,
			Size:        int64(len(file.Data)),
		}
		if contextText != "" {
			record.Type = models.RecordTextImage
		} else {
			record.Type = models.RecordImage
		}

	default:
		return nil, ErrUnsupportedUpload
	}

	if err := s.repo.Insert(ctx, &record); err != nil {
		// Compensate the orphaned object before surfacing the failure.
		if record.Media != nil {
			s.cleanupObject(record.Media.Key)
		}
		return nil, err
	}

	return s.view(ctx, &record), nil
}

// List returns the user's records newest first. A failed URL resolution
// degrades that record's imageUrl to null rather than failing the response.
func (s *RecordService) List(ctx context.Context, uid primitive.ObjectID) ([]RecordView, error) {
	records, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	views := make([]RecordView, 0, len(records))
	for i := range records {
		views = append(views, *s.view(ctx, &records[i]))
	}
	return views, nil
}

// RecordUpdateInput is a partial record update. NewImage replaces any
// existing image; RemoveImage drops it. Both never appear together.
type RecordUpdateInput struct {
	Context     *string
	NewImage    *FileUpload
	RemoveImage bool
}

// Update applies a partial update to an owned record. Image replacement
// uploads the new object first and deletes the old one best-effort afterward.
func (s *RecordService) Update(ctx context.Context, uid primitive.ObjectID, id string, in RecordUpdateInput) error {
	record, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return err
	}

	set := bson.M{}
	unset := bson.M{}
	var staleKey string

	if in.Context != nil {
		set["context"] = *in.Context
		record.Context = *in.Context
	}

	switch {
	case in.NewImage != nil:
		if !strings.HasPrefix(in.NewImage.ContentType, "image/") {
			return ErrUnsupportedUpload
		}
		key := s.objectKey(uid, in.NewImage.Filename)
		if err := s.storage.Upload(ctx, key, in.NewImage.ContentType, in.NewImage.Data); err != nil {
			return err
		}
		if record.Media != nil {
			staleKey = record.Media.Key
		}
		set["media"] = models.Media{
			Key:         key,
			ContentType: in.NewImage.ContentType,
			Size:        int64(len(in.NewImage.Data)),
		}
		record.Media = &models.Media{Key: key}

	case in.RemoveImage:
		if record.Media != nil {
			staleKey = record.Media.Key
		}
		unset["media"] = ""
		record.Media = nil
	}

	if len(set) == 0 && len(unset) == 0 {
		return ErrNoChanges
	}

	// Keep the type tag the minimal accurate description of the content.
	set["type"] = recordTypeFor(record.Context, record.Media != nil)
	set["updatedAt"] = time.Now()

	if err := s.repo.Apply(ctx, record.ID, set, unset); err != nil {
		return err
	}

	if staleKey != "" {
		s.cleanupObject(staleKey)
	}
	return nil
}

// Delete removes an owned record and best-effort deletes its stored object.
func (s *RecordService) Delete(ctx context.Context, uid primitive.ObjectID, id string) error {
	record, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		return err
	}
	if record.Media != nil && record.Media.Key != "" {
		s.cleanupObject(record.Media.Key)
	}
	return nil
}

// ListWindow returns the user's records with createdAt in [start, end),
// ascending. Used by the diary aggregation pipeline.
func (s *RecordService) ListWindow(ctx context.Context, uid primitive.ObjectID, start, end time.Time) ([]models.Record, error) {
	return s.repo.FindWindow(ctx, uid, start, end)
}

// FindAllByIDs returns the user's records matching ids, in one query.
func (s *RecordService) FindAllByIDs(ctx context.Context, uid primitive.ObjectID, ids []primitive.ObjectID) (map[string]models.Record, error) {
	if len(ids) == 0 {
		return map[string]models.Record{}, nil
	}
	records, err := s.repo.FindByIDs(ctx, uid, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Record, len(records))
	for i := range records {
		out[records[i].ID.Hex()] = records[i]
	}
	return out, nil
}

func (s *RecordService) findOwned(ctx context.Context, uid primitive.ObjectID, id string) (*models.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	record, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if record.UserID != uid {
		return nil, ErrNotOwner
	}
	return record, nil
}

func (s *RecordService) view(ctx context.Context, r *models.Record) *RecordView {
	v := &RecordView{
		ID:        r.ID.Hex(),
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Context != "" {
		v.Context = &r.Context
	}
	if r.Media != nil && r.Media.Key != "" {
		url, err := s.storage.ResolveReadURL(ctx, r.Media.Key)
		if err != nil {
			s.log.Warn("failed to resolve media url", "record", r.ID.Hex(), "key", r.Media.Key, "error", err)
		} else {
			v.ImageURL = &url
		}
	}
	return v
}

func (s *RecordService) objectKey(uid primitive.ObjectID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("records/%s/%s%s", uid.Hex(), uuid.NewString(), ext)
}

// cleanupObject deletes a stored object outside the request lifecycle.
// Failures are logged; the record mutation has already been decided.
func (s *RecordService) cleanupObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete stored object", "key", key, "error", err)
	}
}

func recordTypeFor(contextText string, hasImage bool) models.RecordType {
	switch {
	case hasImage && contextText != "":
		return models.RecordTextImage
	case hasImage:
		return models.RecordImage
	default:
		return models.RecordText
	}
}
