package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/moadiary/moa-backend/internal/models"
)

// Generation-service item vocabulary. Records and the generation service
// evolve their type names independently; this file is the only place that
// maps between them.
const (
	aiTypeText          = "text"
	aiTypeImage         = "image"
	aiTypeImageWithText = "image_with_text"
	aiTypeAudio         = "audio"
)

// MapAIType translates a canonical record type into the generation-service
// vocabulary. "text+image" becomes "image_with_text"; legacy "voice" tags are
// already normalized to "audio" at the store boundary.
func MapAIType(t models.RecordType) string {
	switch models.NormalizeRecordType(t) {
	case models.RecordTextImage:
		return aiTypeImageWithText
	case models.RecordImage:
		return aiTypeImage
	case models.RecordAudio:
		return aiTypeAudio
	default:
		return aiTypeText
	}
}

// ResolveURL derives a readable URL from a storage key.
type ResolveURL func(ctx context.Context, key string) (string, error)

// ToAIPayload shapes records into generation-service items. Media paths are
// resolved here because they are mandatory content for the generation call;
// a resolution failure propagates instead of degrading. Items come back
// stable-sorted by source timestamp ascending; items without timestamps keep
// their relative order.
func ToAIPayload(ctx context.Context, records []models.Record, resolve ResolveURL) ([]AIItem, error) {
	items := make([]AIItem, 0, len(records))

	for _, r := range records {
		item := AIItem{Type: MapAIType(r.Type)}
		if !r.CreatedAt.IsZero() {
			item.Timestamp = r.CreatedAt.UTC().Format(time.RFC3339)
		}

		switch item.Type {
		case aiTypeText:
			item.Content = r.Context

		case aiTypeImage, aiTypeAudio:
			if r.Media == nil || r.Media.Key == "" {
				continue
			}
			url, err := resolve(ctx, r.Media.Key)
			if err != nil {
				return nil, fmt.Errorf("resolve media for record %s: %w", r.ID.Hex(), err)
			}
			item.Path = url

		case aiTypeImageWithText:
			item.Content = r.Context
			if r.Media != nil && r.Media.Key != "" {
				url, err := resolve(ctx, r.Media.Key)
				if err != nil {
					return nil, fmt.Errorf("resolve media for record %s: %w", r.ID.Hex(), err)
				}
				item.Path = url
			}
		}

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp == "" || items[j].Timestamp == "" {
			return false
		}
		return items[i].Timestamp < items[j].Timestamp
	})

	return items, nil
}

// HasUsableContent reports whether at least one item carries non-empty text
// or a resolved media path. All-empty payloads never reach the generation
// service.
func HasUsableContent(items []AIItem) bool {
	for _, it := range items {
		if it.Content != "" || it.Path != "" {
			return true
		}
	}
	return false
}
