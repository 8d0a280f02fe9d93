package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/moadiary/moa-backend/internal/models"
)

// SessionRepo persists refresh-token sessions. The store's single-document
// atomic update is the only mutual-exclusion mechanism the rotation protocol
// needs: of two concurrent revocations, exactly one observes Revoke() == true.
type SessionRepo interface {
	Create(ctx context.Context, s *models.Session) error
	FindByJTI(ctx context.Context, jti string) (*models.Session, error)
	// Revoke marks the session revoked if it is still active. Returns true
	// when this call performed the revocation, false when the session was
	// already revoked or does not exist.
	Revoke(ctx context.Context, jti string) (bool, error)
}

// SessionStore is the MongoDB-backed SessionRepo.
type SessionStore struct {
	col *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection("sessions")}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	if _, err := s.col.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) FindByJTI(ctx context.Context, jti string) (*models.Session, error) {
	var session models.Session
	err := s.col.FindOne(ctx, bson.M{"jti": jti}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Revoke(ctx context.Context, jti string) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"jti": jti, "revokedAt": nil},
		bson.M{"$set": bson.M{"revokedAt": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
