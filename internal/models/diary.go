package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DiaryImage captures the storage key of an image that contributed to a diary.
// Only keys are persisted; read paths presign a fresh URL every time.
type DiaryImage struct {
	Key       string    `bson:"key" json:"key"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// DiarySource is a back-reference to one record used to generate the diary.
// It is the audit trail proving which records produced which text.
type DiarySource struct {
	RecordID  primitive.ObjectID `bson:"recordId" json:"record_id"`
	Type      RecordType         `bson:"type" json:"type"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
}

// Diary is the generated narrative artifact for one calendar day.
type Diary struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"user_id"`
	Text      string             `bson:"text" json:"text"`
	Persona   int                `bson:"persona" json:"persona"`
	Emotion   *string            `bson:"emotion,omitempty" json:"emotion"`
	Date      string             `bson:"date" json:"date"`
	Images    []DiaryImage       `bson:"images" json:"images"`
	Sources   []DiarySource      `bson:"sources" json:"sources"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}
