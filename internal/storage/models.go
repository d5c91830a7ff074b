package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Distance is the similarity metric a collection is created with.
type Distance string

const (
	DistanceCosine Distance = "cosine"
	DistanceDot    Distance = "dot"
	DistanceEuclid Distance = "euclid"
)

// ParseDistance converts a configuration value into a Distance.
func ParseDistance(s string) (Distance, error) {
	switch d := Distance(strings.ToLower(strings.TrimSpace(s))); d {
	case DistanceCosine, DistanceDot, DistanceEuclid:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDistance, s)
	}
}

// PointID identifies a point. Exactly one of Num or UUID is meaningful:
// a non-empty UUID wins, otherwise the point is addressed by Num.
type PointID struct {
	Num  uint64
	UUID string
}

// NumID returns a numeric point id.
func NumID(n uint64) PointID { return PointID{Num: n} }

// UUIDID returns a UUID point id.
func UUIDID(id string) PointID { return PointID{UUID: id} }

// IsUUID reports whether the id is UUID-based.
func (id PointID) IsUUID() bool { return id.UUID != "" }

func (id PointID) String() string {
	if id.IsUUID() {
		return id.UUID
	}
	return strconv.FormatUint(id.Num, 10)
}

// ParsePointID accepts either a decimal integer or a UUID.
func ParsePointID(s string) (PointID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NumID(n), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return PointID{}, fmt.Errorf("%w: %q", ErrInvalidPointID, s)
	}
	return UUIDID(u.String()), nil
}

// MarshalJSON encodes numeric ids as JSON numbers and UUIDs as strings.
func (id PointID) MarshalJSON() ([]byte, error) {
	if id.IsUUID() {
		return json.Marshal(id.UUID)
	}
	return json.Marshal(id.Num)
}

// UnmarshalJSON accepts a JSON number or a string holding a number or UUID.
func (id *PointID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = NumID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPointID, string(data))
	}
	parsed, err := ParsePointID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Point is a stored (id, vector, payload) record.
// Payload values are restricted to string, int64 and float64.
type Point struct {
	ID      PointID
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit. Higher scores are more similar.
type ScoredPoint struct {
	ID      PointID
	Score   float32
	Payload map[string]any
}

// FieldMatch is an exact keyword match on a payload field.
type FieldMatch struct {
	Key   string
	Value string
}

// Filter selects points matching every condition in Must.
type Filter struct {
	Must []FieldMatch
}

// MatchKeyword builds a single-condition filter.
func MatchKeyword(key, value string) *Filter {
	return &Filter{Must: []FieldMatch{{Key: key, Value: value}}}
}

// OrderBy orders a scroll by an integer payload field.
type OrderBy struct {
	Key        string
	Descending bool
}

// ScrollRequest describes an unranked listing of points.
// Offset and OrderBy cannot be combined.
type ScrollRequest struct {
	Filter  *Filter
	Limit   uint32
	Offset  *PointID
	OrderBy *OrderBy
}

// IndexKind is the payload index type created for a field.
type IndexKind int

const (
	IndexKeyword IndexKind = iota
	IndexInteger
)

// CollectionSpec describes a collection and the payload indexes it needs.
type CollectionSpec struct {
	Name       string
	VectorSize uint64
	Distance   Distance
	Indexes    map[string]IndexKind
}

// VectorStore is the collection-scoped point store the notes service runs on.
type VectorStore interface {
	Health(ctx context.Context) error
	// EnsureCollection creates the collection if missing. Already-exists is success.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	Count(ctx context.Context, collection string, filter *Filter) (uint64, error)
	Upsert(ctx context.Context, collection string, points []*Point) error
	DeletePoints(ctx context.Context, collection string, ids []PointID) error
	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error
	Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit uint64) ([]*ScoredPoint, error)
	// Scroll returns one page of points and the offset of the next page, nil when exhausted.
	Scroll(ctx context.Context, collection string, req ScrollRequest) ([]*Point, *PointID, error)
	Close() error
}
