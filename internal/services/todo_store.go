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

// TodoRepo is the todos collection boundary.
type TodoRepo interface {
	Insert(ctx context.Context, t *models.Todo) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Todo, error)
	FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Todo, error)
	Apply(ctx context.Context, id primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// TodoStore is the MongoDB-backed TodoRepo.
type TodoStore struct {
	col *mongo.Collection
}

func NewTodoStore(db *mongo.Database) *TodoStore {
	return &TodoStore{col: db.Collection("todos")}
}

func (s *TodoStore) Insert(ctx context.Context, t *models.Todo) error {
	if _, err := s.col.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (s *TodoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Todo, error) {
	var todo models.Todo
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&todo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find todo: %w", err)
	}
	return &todo, nil
}

func (s *TodoStore) FindByUser(ctx context.Context, uid primitive.ObjectID) ([]models.Todo, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"userId": uid},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	var todos []models.Todo
	if err := cursor.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	return todos, nil
}

func (s *TodoStore) Apply(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}
