package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordType is the fixed set of record content tags. A record's type is the
// minimal accurate description of its content: text-only records never carry
// media, image-bearing records always do, and voice submissions are transcribed
// at ingestion and stored as plain text records.
type RecordType string

const (
	RecordText      RecordType = "text"
	RecordImage     RecordType = "image"
	RecordTextImage RecordType = "text+image"
	RecordAudio     RecordType = "audio"
)

// legacyVoice is the historical tag older documents used for audio records.
const legacyVoice RecordType = "voice"

// NormalizeRecordType maps legacy stored tags into the canonical vocabulary.
// Applied at the store boundary so call sites only ever see canonical tags.
func NormalizeRecordType(t RecordType) RecordType {
	if t == legacyVoice {
		return RecordAudio
	}
	return t
}

// HasImage reports whether the type implies an attached image object.
func (t RecordType) HasImage() bool {
	return t == RecordImage || t == RecordTextImage
}

// Media references an object in storage by key. URLs are never stored; they
// are re-derived from the key on every read because they expire.
type Media struct {
	Key         string `bson:"key" json:"key"`
	ContentType string `bson:"contentType,omitempty" json:"content_type,omitempty"`
	Size        int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// Record is one atomic user-submitted diary input.
type Record struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"user_id"`
	Type      RecordType         `bson:"type" json:"type"`
	Context   string             `bson:"context,omitempty" json:"context,omitempty"`
	Media     *Media             `bson:"media,omitempty" json:"media,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}

// Normalize rewrites legacy fields in place after a read from the store.
func (r *Record) Normalize() {
	r.Type = NormalizeRecordType(r.Type)
}
