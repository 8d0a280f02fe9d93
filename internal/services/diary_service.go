package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

// kst is the fixed local offset used to interpret diary dates. Day windows
// are local-midnight to local-midnight, half-open, expressed as UTC instants.
var kst = time.FixedZone("KST", 9*60*60)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var ErrBadDate = errors.New("date must be YYYY-MM-DD")

// DayRange resolves a YYYY-MM-DD date to its [start, end) window in UTC.
// An empty date means today in KST.
func DayRange(date string) (start, end time.Time, err error) {
	if date == "" {
		date = time.Now().In(kst).Format("2006-01-02")
	}
	if !dateRe.MatchString(date) {
		return time.Time{}, time.Time{}, ErrBadDate
	}
	local, err := time.ParseInLocation("2006-01-02", date, kst)
	if err != nil {
		return time.Time{}, time.Time{}, ErrBadDate
	}
	start = local.UTC()
	end = local.Add(24 * time.Hour).UTC()
	return start, end, nil
}

// ImageRef pairs a freshly resolved URL with the source record's timestamp.
type ImageRef struct {
	URL       *string   `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// DiaryView is the API representation of a diary, with image URLs re-derived
// from stored keys at read time.
type DiaryView struct {
	ID        string               `json:"id"`
	Text      string               `json:"text"`
	Persona   int                  `json:"persona"`
	Emotion   *string              `json:"emotion"`
	Date      string               `json:"date"`
	Images    []ImageRef           `json:"images"`
	Sources   []models.DiarySource `json:"sources"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// DiarySourceView is one source record rendered inside a list entry.
type DiarySourceView struct {
	CreatedAt time.Time         `json:"created_at"`
	Type      models.RecordType `json:"type"`
	Context   *string           `json:"context"`
	ImageURL  *string           `json:"imageUrl"`
	AudioURL  *string           `json:"audioUrl"`
}

// DiaryListEntry is one diary in the list view, with its source records
// expanded and media resolved.
type DiaryListEntry struct {
	ID        string            `json:"id"`
	Date      string            `json:"date"`
	Text      string            `json:"text"`
	Persona   int               `json:"persona"`
	Emotion   *string           `json:"emotion"`
	Records   []DiarySourceView `json:"records"`
	Images    []ImageRef        `json:"images"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DiaryService orchestrates the aggregation pipeline: window resolution,
// record retrieval, normalization, the external generation call and
// persistence of the resulting artifact.
type DiaryService struct {
	repo    DiaryRepo
	records *RecordService
	gen     Generator
	storage ObjectStorage
	log     *slog.Logger
}

func NewDiaryService(repo DiaryRepo, records *RecordService, gen Generator, storage ObjectStorage, log *slog.Logger) *DiaryService {
	return &DiaryService{
		repo:    repo,
		records: records,
		gen:     gen,
		storage: storage,
		log:     log,
	}
}

// Create generates and persists a diary for the given date. The diary's
// sources reference the exact record set used, and images store keys only;
// URLs in the returned view are resolved fresh.
func (s *DiaryService) Create(ctx context.Context, uid primitive.ObjectID, date string, persona int) (*DiaryView, error) {
	start, end, err := DayRange(date)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = start.In(kst).Format("2006-01-02")
	}

	records, err := s.records.ListWindow(ctx, uid, start, end)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	items, err := ToAIPayload(ctx, records, s.storage.ResolveReadURL)
	if err != nil {
		return nil, err
	}
	if !HasUsableContent(items) {
		return nil, ErrEmptyPayload
	}

	text, err := s.gen.Generate(ctx, items, persona)
	if err != nil {
		return nil, err
	}

	var images []models.DiaryImage
	for _, r := range records {
		if r.Type.HasImage() && r.Media != nil && r.Media.Key != "" {
			images = append(images, models.DiaryImage{Key: r.Media.Key, CreatedAt: r.CreatedAt})
		}
	}

	sources := make([]models.DiarySource, 0, len(records))
	for _, r := range records {
		sources = append(sources, models.DiarySource{
			RecordID:  r.ID,
			Type:      r.Type,
			CreatedAt: r.CreatedAt,
		})
	}

	now := time.Now()
	diary := models.Diary{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Text:      text,
		Persona:   persona,
		Date:      date,
		Images:    images,
		Sources:   sources,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, &diary); err != nil {
		return nil, err
	}

	return s.view(ctx, &diary), nil
}

// Get returns an owned diary with fresh image URLs. Ownership mismatch is not
// distinguished from absence.
func (s *DiaryService) Get(ctx context.Context, uid primitive.ObjectID, id string) (*DiaryView, error) {
	diary, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, diary), nil
}

// List returns all diaries newest first. Source records across all diaries
// are fetched in a single batched query; N diaries never cost N record
// queries.
func (s *DiaryService) List(ctx context.Context, uid primitive.ObjectID) ([]DiaryListEntry, error) {
	diaries, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(diaries) == 0 {
		return []DiaryListEntry{}, nil
	}

	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, d := range diaries {
		for _, src := range d.Sources {
			if !seen[src.RecordID] {
				seen[src.RecordID] = true
				ids = append(ids, src.RecordID)
			}
		}
	}
	recordMap, err := s.records.FindAllByIDs(ctx, uid, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]DiaryListEntry, 0, len(diaries))
	for _, d := range diaries {
		entries = append(entries, s.listEntry(ctx, d, recordMap))
	}
	return entries, nil
}

// DiaryUpdateInput is a partial diary update; nil fields are untouched.
type DiaryUpdateInput struct {
	Text    *string
	Persona *int
	Emotion *string
	Images  []models.DiaryImage
}

// Update applies a partial update to an owned diary. At least one field must
// change.
func (s *DiaryService) Update(ctx context.Context, uid primitive.ObjectID, id string, in DiaryUpdateInput) error {
	diary, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return err
	}

	set := bson.M{}
	if in.Text != nil {
		set["text"] = *in.Text
	}
	if in.Persona != nil {
		set["persona"] = *in.Persona
	}
	if in.Emotion != nil {
		set["emotion"] = *in.Emotion
	}
	if in.Images != nil {
		set["images"] = in.Images
	}
	if len(set) == 0 {
		return ErrNoChanges
	}
	set["updatedAt"] = time.Now()

	return s.repo.Apply(ctx, diary.ID, set)
}

func (s *DiaryService) findOwned(ctx context.Context, uid primitive.ObjectID, id string) (*models.Diary, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Find(ctx, uid, oid)
}

func (s *DiaryService) view(ctx context.Context, d *models.Diary) *DiaryView {
	images := make([]ImageRef, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, ImageRef{URL: s.resolveOrNil(ctx, img.Key), CreatedAt: img.CreatedAt})
	}
	sources := d.Sources
	if sources == nil {
		sources = []models.DiarySource{}
	}
	return &DiaryView{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		Persona:   d.Persona,
		Emotion:   d.Emotion,
		Date:      d.Date,
		Images:    images,
		Sources:   sources,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (s *DiaryService) listEntry(ctx context.Context, d models.Diary, recordMap map[string]models.Record) DiaryListEntry {
	src := append([]models.DiarySource(nil), d.Sources...)
	sort.SliceStable(src, func(i, j int) bool { return src[i].CreatedAt.Before(src[j].CreatedAt) })

	var views []DiarySourceView
	var images []ImageRef
	for _, ref := range src {
		rec, ok := recordMap[ref.RecordID.Hex()]
		if !ok {
			// Source record deleted since diary creation; skip.
			continue
		}
		view := DiarySourceView{CreatedAt: rec.CreatedAt, Type: rec.Type}
		if rec.Context != "" {
			view.Context = &rec.Context
		}
		if rec.Media != nil && rec.Media.Key != "" {
			url := s.resolveOrNil(ctx, rec.Media.Key)
			if rec.Type == models.RecordAudio {
				view.AudioURL = url
			} else {
				view.ImageURL = url
				if url != nil {
					images = append(images, ImageRef{URL: url, CreatedAt: rec.CreatedAt})
				}
			}
		}
		views = append(views, view)
	}

	return DiaryListEntry{
		ID:        d.ID.Hex(),
		Date:      d.Date,
		Text:      d.Text,
		Persona:   d.Persona,
		Emotion:   d.Emotion,
		Records:   views,
		Images:    images,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// resolveOrNil degrades a failed per-item URL resolution to nil instead of
// failing the whole response.
func (s *DiaryService) resolveOrNil(ctx context.Context, key string) *string {
	url, err := s.storage.ResolveReadURL(ctx, key)
	if err != nil {
		s.log.Warn("failed to resolve image url", "key", key, "error", err)
		return nil
	}
	return &url
}
