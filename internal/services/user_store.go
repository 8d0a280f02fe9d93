package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/moadiary/moa-backend/internal/models"
)

// UserRepo is the identity store boundary used by the auth flow.
type UserRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, id primitive.ObjectID) error
}

// UserStore is the MongoDB-backed UserRepo. The (provider, providerID) unique
// index is the natural key; duplicate signups surface as ErrAlreadyRegistered.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) FindByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"provider": provider, "providerID": providerID}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by provider: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.LastLoginAt = now

	if _, err := s.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lastLoginAt": now, "updatedAt": now}},
	)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}
