package notes

import (
	"fmt"
	"time"
)

// Payload field names as stored in the vector store.
const (
	FieldCollectionName = "collection_name"
	FieldContent        = "content"
	FieldNumericID      = "numeric_id"
	FieldSection        = "section"

	FieldCollection = "collection"
	FieldOwnerID    = "owner_id"
	FieldCreatedAt  = "created_at"
)

// ChunkPayload is the payload of a chunk point in the notes collection.
type ChunkPayload struct {
	CollectionName string
	Content        string
	NumericID      int64 // advisory sequence hint, not unique
	Section        string
}

func (p ChunkPayload) fields() map[string]any {
	m := map[string]any{
		FieldCollectionName: p.CollectionName,
		FieldContent:        p.Content,
		FieldNumericID:      p.NumericID,
	}
	if p.Section != "" {
		m[FieldSection] = p.Section
	}
	return m
}

func decodeChunkPayload(m map[string]any) (ChunkPayload, error) {
	var p ChunkPayload
	var ok bool
	if p.CollectionName, ok = m[FieldCollectionName].(string); !ok {
		return p, fmt.Errorf("%w: missing %s", ErrInvalidPayload, FieldCollectionName)
	}
	if p.Content, ok = m[FieldContent].(string); !ok {
		return p, fmt.Errorf("%w: missing %s", ErrInvalidPayload, FieldContent)
	}
	p.NumericID, _ = asInt64(m[FieldNumericID])
	p.Section, _ = m[FieldSection].(string)
	return p, nil
}

// MetadataPayload is the payload of a document record in the metadata table.
type MetadataPayload struct {
	Collection string
	OwnerID    string
	CreatedAt  time.Time
}

func (p MetadataPayload) fields() map[string]any {
	return map[string]any{
		FieldCollection: p.Collection,
		FieldOwnerID:    p.OwnerID,
		FieldCreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeMetadataPayload(m map[string]any) (MetadataPayload, error) {
	var p MetadataPayload
	var ok bool
	if p.Collection, ok = m[FieldCollection].(string); !ok || p.Collection == "" {
		return p, fmt.Errorf("%w: missing %s", ErrInvalidPayload, FieldCollection)
	}
	p.OwnerID, _ = m[FieldOwnerID].(string)
	if raw, ok := m[FieldCreatedAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			p.CreatedAt = ts
		}
	}
	return p, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
