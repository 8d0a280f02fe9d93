package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

// In-memory repo and collaborator fakes shared across service tests.

type fakeRecordRepo struct {
	mu         sync.Mutex
	records    map[primitive.ObjectID]*models.Record
	failInsert bool
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[primitive.ObjectID]*models.Record{}}
}

func (f *fakeRecordRepo) Insert(_ context.Context, r *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		f.failInsert = false
		return errors.New("store unavailable")
	}
	cp := *r
	f.records[r.ID] = &cp
	return nil
}

func (f *fakeRecordRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecordRepo) FindByUser(_ context.Context, uid primitive.ObjectID) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Record
	for _, r := range f.records {
		if r.UserID == uid {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRecordRepo) FindWindow(_ context.Context, uid primitive.ObjectID, start, end time.Time) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Record
	for _, r := range f.records {
		if r.UserID == uid && !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRecordRepo) FindByIDs(_ context.Context, uid primitive.ObjectID, ids []primitive.ObjectID) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Record
	for _, id := range ids {
		if r, ok := f.records[id]; ok && r.UserID == uid {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) Apply(_ context.Context, id primitive.ObjectID, set, unset bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := set["context"]; ok {
		r.Context = v.(string)
	}
	if v, ok := set["type"]; ok {
		r.Type = v.(models.RecordType)
	}
	if v, ok := set["media"]; ok {
		m := v.(models.Media)
		r.Media = &m
	}
	if v, ok := set["updatedAt"]; ok {
		r.UpdatedAt = v.(time.Time)
	}
	if _, ok := unset["media"]; ok {
		r.Media = nil
	}
	return nil
}

func (f *fakeRecordRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

type fakeDiaryRepo struct {
	mu      sync.Mutex
	diaries map[primitive.ObjectID]*models.Diary
}

func newFakeDiaryRepo() *fakeDiaryRepo {
	return &fakeDiaryRepo{diaries: map[primitive.ObjectID]*models.Diary{}}
}

func (f *fakeDiaryRepo) Insert(_ context.Context, d *models.Diary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.diaries[d.ID] = &cp
	return nil
}

func (f *fakeDiaryRepo) Find(_ context.Context, uid, id primitive.ObjectID) (*models.Diary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.diaries[id]
	if !ok || d.UserID != uid {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDiaryRepo) FindByUser(_ context.Context, uid primitive.ObjectID) ([]models.Diary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Diary
	for _, d := range f.diaries {
		if d.UserID == uid {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDiaryRepo) Apply(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.diaries[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := set["text"]; ok {
		d.Text = v.(string)
	}
	if v, ok := set["persona"]; ok {
		d.Persona = v.(int)
	}
	if v, ok := set["emotion"]; ok {
		e := v.(string)
		d.Emotion = &e
	}
	if v, ok := set["images"]; ok {
		d.Images = v.([]models.DiaryImage)
	}
	return nil
}

type fakeTodoRepo struct {
	mu    sync.Mutex
	todos map[primitive.ObjectID]*models.Todo
}

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{todos: map[primitive.ObjectID]*models.Todo{}}
}

func (f *fakeTodoRepo) Insert(_ context.Context, t *models.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.todos[t.ID] = &cp
	return nil
}

func (f *fakeTodoRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTodoRepo) FindByUser(_ context.Context, uid primitive.ObjectID) ([]models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Todo
	for _, t := range f.todos {
		if t.UserID == uid {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTodoRepo) Apply(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := set["context"]; ok {
		t.Context = v.(string)
	}
	if v, ok := set["date"]; ok {
		t.Date = v.(string)
	}
	if v, ok := set["done"]; ok {
		t.Done = v.(bool)
	}
	return nil
}

func (f *fakeTodoRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.todos, id)
	return nil
}

// memStorage is an in-memory ObjectStorage. Resolved URLs embed the key so
// tests can tell which object a URL points at.
type memStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failResolve bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) ResolveReadURL(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResolve {
		return "", errors.New("presign failed")
	}
	return "https://signed.example.com/" + key, nil
}

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string, []byte) (string, error) {
	return f.text, f.err
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
	items []AIItem
}

func (f *fakeGenerator) Generate(_ context.Context, items []AIItem, _ int) (string, error) {
	f.calls++
	f.items = items
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}
