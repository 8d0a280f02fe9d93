package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moadiary/moa-backend/internal/models"
)

// DiaryRepo is the diaries collection boundary. Find scopes by owner in the
// query itself, so another user's diary is indistinguishable from a missing
// one.
type DiaryRepo interface {
	Insert(ctx context.Context, d *models.Diary) error
	Find(ctx context.Context, uid, id primitive.ObjectID) (*models.Diary, error)
	FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Diary, error)
	Apply(ctx context.Context, id primitive.ObjectID, set bson.M) error
}

// DiaryStore is the MongoDB-backed DiaryRepo.
type DiaryStore struct {
	col *mongo.Collection
}

func NewDiaryStore(db *mongo.Database) *DiaryStore {
	return &DiaryStore{col: db.Collection("diaries")}
}

func (s *DiaryStore) Insert(ctx context.Context, d *models.Diary) error {
	if _, err := s.col.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert diary: %w", err)
	}
	return nil
}

func (s *DiaryStore) Find(ctx context.Context, uid, id primitive.ObjectID) (*models.Diary, error) {
	var diary models.Diary
	err := s.col.FindOne(ctx, bson.M{"_id": id, "userId": uid}).Decode(&diary)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find diary: %w", err)
	}
	return &diary, nil
}

func (s *DiaryStore) FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Diary, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list diaries: %w", err)
	}
	var diaries []models.Diary
	if err := cursor.All(ctx, &diaries); err != nil {
		return nil, fmt.Errorf("decode diaries: %w", err)
	}
	return diaries, nil
}

func (s *DiaryStore) Apply(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update diary: %w", err)
	}
	return nil
}
