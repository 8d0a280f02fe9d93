package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

func TestDayRangeResolvesLocalDay(t *testing.T) {
	start, end, err := DayRange("2024-01-15")
	require.NoError(t, err)

	// Local midnight in KST (UTC+9) is 15:00 UTC the previous day.
	assert.Equal(t, time.Date(2024, 1, 14, 15, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC), end)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDayRangeDefaultsToToday(t *testing.T) {
	start, end, err := DayRange("")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, now.Before(start))
	assert.True(t, now.Before(end))
}

func TestDayRangeRejectsMalformedDates(t *testing.T) {
	for _, date := range []string{
		"2024-1-15",
		"2024/01/15",
		"15-01-2024",
		"2024-01-15T00:00:00Z",
		"yesterday",
		"2024-13-99",
	} {
		_, _, err := DayRange(date)
		assert.ErrorIs(t, err, ErrBadDate, "date %q", date)
	}
}

func TestDayRangeIsHalfOpen(t *testing.T) {
	_, end, err := DayRange("2024-01-15")
	require.NoError(t, err)
	nextStart, _, err := DayRange("2024-01-16")
	require.NoError(t, err)

	// Adjacent days share a boundary instant; it belongs to the later day.
	assert.Equal(t, end, nextStart)
}

func newTestDiaryService(t *testing.T) (*DiaryService, *fakeDiaryRepo, *fakeRecordRepo, *fakeGenerator, *memStorage) {
	t.Helper()
	diaryRepo := newFakeDiaryRepo()
	recordRepo := newFakeRecordRepo()
	storage := newMemStorage()
	gen := &fakeGenerator{text: "생성된 일기"}
	records := NewRecordService(recordRepo, storage, &fakeTranscriber{}, slog.Default())
	svc := NewDiaryService(diaryRepo, records, gen, storage, slog.Default())
	return svc, diaryRepo, recordRepo, gen, storage
}

// inWindow returns an instant inside the KST day of the given date.
func inWindow(t *testing.T, date string, offset time.Duration) time.Time {
	t.Helper()
	start, _, err := DayRange(date)
	require.NoError(t, err)
	return start.Add(offset)
}

func TestDiaryCreateEmptyDayMakesNoExternalCalls(t *testing.T) {
	svc, diaryRepo, _, gen, _ := newTestDiaryService(t)

	_, err := svc.Create(context.Background(), primitive.NewObjectID(), "2024-01-15", 0)
	assert.ErrorIs(t, err, ErrNoRecords)
	assert.Zero(t, gen.calls, "generator must not run for an empty day")
	assert.Empty(t, diaryRepo.diaries)
}

func TestDiaryCreatePersistsKeysAndSources(t *testing.T) {
	svc, diaryRepo, recordRepo, gen, storage := newTestDiaryService(t)
	ctx := context.Background()
	uid := primitive.NewObjectID()

	textRec := &models.Record{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Type:      models.RecordText,
		Context:   "아침 산책",
		CreatedAt: inWindow(t, "2024-01-15", time.Hour),
	}
	imageRec := &models.Record{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Type:      models.RecordImage,
		Media:     &models.Media{Key: "records/" + uid.Hex() + "/walk.jpg"},
		CreatedAt: inWindow(t, "2024-01-15", 3*time.Hour),
	}
	require.NoError(t, recordRepo.Insert(ctx, textRec))
	require.NoError(t, recordRepo.Insert(ctx, imageRec))
	require.NoError(t, storage.Upload(ctx, imageRec.Media.Key, "image/jpeg", []byte("jpeg")))

	view, err := svc.Create(ctx, uid, "2024-01-15", 1)
	require.NoError(t, err)
	assert.Equal(t, "생성된 일기", view.Text)
	assert.Equal(t, "2024-01-15", view.Date)

	// The generator saw both records, oldest first, with a resolved path.
	require.Equal(t, 1, gen.calls)
	require.Len(t, gen.items, 2)
	assert.Equal(t, "아침 산책", gen.items[0].Content)
	assert.Equal(t, "https://signed.example.com/"+imageRec.Media.Key, gen.items[1].Path)

	// The stored document keeps keys and record back-references, never URLs.
	require.Len(t, diaryRepo.diaries, 1)
	var stored *models.Diary
	for _, d := range diaryRepo.diaries {
		stored = d
	}
	require.Len(t, stored.Images, 1)
	assert.Equal(t, imageRec.Media.Key, stored.Images[0].Key)
	require.Len(t, stored.Sources, 2)
	assert.Equal(t, textRec.ID, stored.Sources[0].RecordID)
	assert.Equal(t, models.RecordText, stored.Sources[0].Type)
	assert.Equal(t, imageRec.ID, stored.Sources[1].RecordID)
}

func TestDiaryCreateAllEmptyRecordsRejected(t *testing.T) {
	svc, _, recordRepo, gen, _ := newTestDiaryService(t)
	ctx := context.Background()
	uid := primitive.NewObjectID()

	// A text record with no content and an image record with no stored key.
	require.NoError(t, recordRepo.Insert(ctx, &models.Record{
		ID: primitive.NewObjectID(), UserID: uid, Type: models.RecordText,
		CreatedAt: inWindow(t, "2024-01-15", time.Hour),
	}))
	require.NoError(t, recordRepo.Insert(ctx, &models.Record{
		ID: primitive.NewObjectID(), UserID: uid, Type: models.RecordImage,
		CreatedAt: inWindow(t, "2024-01-15", 2*time.Hour),
	}))

	_, err := svc.Create(ctx, uid, "2024-01-15", 0)
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.Zero(t, gen.calls)
}

func TestDiaryCreateSkipsOtherUsersRecords(t *testing.T) {
	svc, _, recordRepo, _, _ := newTestDiaryService(t)
	ctx := context.Background()
	uid := primitive.NewObjectID()
	other := primitive.NewObjectID()

	require.NoError(t, recordRepo.Insert(ctx, &models.Record{
		ID: primitive.NewObjectID(), UserID: other, Type: models.RecordText,
		Context: "남의 기록", CreatedAt: inWindow(t, "2024-01-15", time.Hour),
	}))

	_, err := svc.Create(ctx, uid, "2024-01-15", 0)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestDiaryOwnershipIsolation(t *testing.T) {
	svc, _, recordRepo, _, _ := newTestDiaryService(t)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	intruder := primitive.NewObjectID()

	require.NoError(t, recordRepo.Insert(ctx, &models.Record{
		ID: primitive.NewObjectID(), UserID: owner, Type: models.RecordText,
		Context: "기록", CreatedAt: inWindow(t, "2024-01-15", time.Hour),
	}))
	view, err := svc.Create(ctx, owner, "2024-01-15", 0)
	require.NoError(t, err)

	// Another user's diary looks exactly like a missing one.
	_, err = svc.Get(ctx, intruder, view.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	newText := "hijacked"
	err = svc.Update(ctx, intruder, view.ID, DiaryUpdateInput{Text: &newText})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Text, got.Text)
}
