package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moadiary/moa-backend/internal/models"
)

// RecordRepo is the records collection boundary. Implementations return
// canonical type tags; legacy normalization happens here, not in callers.
type RecordRepo interface {
	Insert(ctx context.Context, r *models.Record) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Record, error)
	FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Record, error)
	FindWindow(ctx context.Context, uid primitive.ObjectID, start, end time.Time) ([]models.Record, error)
	FindByIDs(ctx context.Context, uid primitive.ObjectID, ids []primitive.ObjectID) ([]models.Record, error)
	Apply(ctx context.Context, id primitive.ObjectID, set, unset bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RecordStore is the MongoDB-backed RecordRepo.
type RecordStore struct {
	col *mongo.Collection
}

func NewRecordStore(db *mongo.Database) *RecordStore {
	return &RecordStore{col: db.Collection("records")}
}

func (s *RecordStore) Insert(ctx context.Context, r *models.Record) error {
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *RecordStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Record, error) {
	var record models.Record
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	record.Normalize()
	return &record, nil
}

func (s *RecordStore) FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Record, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

func (s *RecordStore) FindWindow(ctx context.Context, uid primitive.ObjectID, start, end time.Time) ([]models.Record, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"userId": uid, "createdAt": bson.M{"$gte": start, "$lt": end}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("query record window: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

func (s *RecordStore) FindByIDs(ctx context.Context, uid primitive.ObjectID, ids []primitive.ObjectID) ([]models.Record, error) {
	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "userId": uid})
	if err != nil {
		return nil, fmt.Errorf("batch fetch records: %w", err)
	}
	return decodeRecords(ctx, cursor)
}

func (s *RecordStore) Apply(ctx context.Context, id primitive.ObjectID, set, unset bson.M) error {
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func (s *RecordStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func decodeRecords(ctx context.Context, cursor *mongo.Cursor) ([]models.Record, error) {
	var records []models.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i := range records {
		records[i].Normalize()
	}
	return records, nil
}
