package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one refresh-token lineage. A session is revoked exactly once, at
// first rotation or explicit logout; RevokedAt == nil means it is still active.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"user_id"`
	JTI       string             `bson:"jti" json:"jti"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expires_at"`
	RevokedAt *time.Time         `bson:"revokedAt" json:"revoked_at,omitempty"`

	// Request metadata captured at issuance, for audit only.
	IP        string `bson:"ip,omitempty" json:"-"`
	UserAgent string `bson:"userAgent,omitempty" json:"-"`
}

// Active reports whether the session can still validate its jti at time now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
