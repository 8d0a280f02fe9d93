package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/moadiary/moa-backend/internal/models"
)

// TodoService is the thin owner-scoped CRUD layer over the todo store.
type TodoService struct {
	repo TodoRepo
}

func NewTodoService(repo TodoRepo) *TodoService {
	return &TodoService{repo: repo}
}

func (s *TodoService) Create(ctx context.Context, uid primitive.ObjectID, contextText, date string) (*models.Todo, error) {
	now := time.Now()
	todo := models.Todo{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Context:   contextText,
		Date:      date,
		Done:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *TodoService) List(ctx context.Context, uid primitive.ObjectID) ([]models.Todo, error) {
	todos, err := s.repo.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	return todos, nil
}

type TodoUpdateInput struct {
	Context *string
	Date    *string
	Done    *bool
}

func (s *TodoService) Update(ctx context.Context, uid primitive.ObjectID, id string, in TodoUpdateInput) error {
	todo, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return err
	}

	set := bson.M{}
	if in.Context != nil {
		set["context"] = *in.Context
	}
	if in.Date != nil {
		set["date"] = *in.Date
	}
	if in.Done != nil {
		set["done"] = *in.Done
	}
	if len(set) == 0 {
		return ErrNoChanges
	}
	set["updatedAt"] = time.Now()

	return s.repo.Apply(ctx, todo.ID, set)
}

func (s *TodoService) Delete(ctx context.Context, uid primitive.ObjectID, id string) error {
	todo, err := s.findOwned(ctx, uid, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, todo.ID)
}

func (s *TodoService) findOwned(ctx context.Context, uid primitive.ObjectID, id string) (*models.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	todo, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if todo.UserID != uid {
		return nil, ErrNotOwner
	}
	return todo, nil
}
