package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStorage is an in-process VectorStore for tests and local runs.
// Search is brute force over the collection.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	spec   CollectionSpec
	order  []string
	points map[string]*Point
}

var _ VectorStore = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryStorage) Health(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStorage) EnsureCollection(_ context.Context, spec CollectionSpec) error {
	switch spec.Distance {
	case DistanceCosine, DistanceDot, "":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDistance, spec.Distance)
	}
	if spec.VectorSize == 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[spec.Name]; ok {
		return nil
	}
	m.collections[spec.Name] = &memoryCollection{
		spec:   spec,
		points: make(map[string]*Point),
	}
	return nil
}

func (m *MemoryStorage) collection(name string) (*memoryCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (m *MemoryStorage) Count(_ context.Context, collection string, filter *Filter) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, p := range c.points {
		if matches(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) Upsert(_ context.Context, collection string, points []*Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != c.spec.VectorSize {
			return fmt.Errorf("%w: collection %s expects %d, got %d",
				ErrDimensionMismatch, collection, c.spec.VectorSize, len(p.Vector))
		}
	}
	for _, p := range points {
		key := p.ID.String()
		if _, ok := c.points[key]; !ok {
			c.order = append(c.order, key)
		}
		c.points[key] = clonePoint(p)
	}
	return nil
}

func (m *MemoryStorage) DeletePoints(_ context.Context, collection string, ids []PointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.points, id.String())
	}
	c.compact()
	return nil
}

func (m *MemoryStorage) DeleteByFilter(_ context.Context, collection string, filter *Filter) error {
	if filter == nil || len(filter.Must) == 0 {
		return fmt.Errorf("%w: delete by filter requires at least one condition", ErrInvalidRequest)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for key, p := range c.points {
		if matches(p.Payload, filter) {
			delete(c.points, key)
		}
	}
	c.compact()
	return nil
}

func (m *MemoryStorage) Search(_ context.Context, collection string, vector []float32, filter *Filter, limit uint64) ([]*ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	if uint64(len(vector)) != c.spec.VectorSize {
		return nil, fmt.Errorf("%w: collection %s expects %d, got %d",
			ErrDimensionMismatch, collection, c.spec.VectorSize, len(vector))
	}

	hits := make([]*ScoredPoint, 0)
	for _, key := range c.order {
		p := c.points[key]
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, &ScoredPoint{
			ID:      p.ID,
			Score:   score(c.spec.Distance, vector, p.Vector),
			Payload: clonePayload(p.Payload),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Scroll pages through points in id order, numeric ids before UUIDs, the way
// Qdrant does. Offset is inclusive and need not name a live point.
func (m *MemoryStorage) Scroll(_ context.Context, collection string, req ScrollRequest) ([]*Point, *PointID, error) {
	if req.Limit == 0 {
		return nil, nil, fmt.Errorf("%w: scroll limit must be positive", ErrInvalidRequest)
	}
	if req.OrderBy != nil && req.Offset != nil {
		return nil, nil, fmt.Errorf("%w: scroll offset cannot be combined with order_by", ErrInvalidRequest)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, nil, err
	}

	selected := make([]*Point, 0)
	for _, p := range c.byID() {
		if req.Offset != nil && lessID(p.ID, *req.Offset) {
			continue
		}
		if !matches(p.Payload, req.Filter) {
			continue
		}
		if req.OrderBy != nil {
			if _, ok := integerField(p.Payload, req.OrderBy.Key); !ok {
				continue
			}
		}
		selected = append(selected, p)
	}

	if req.OrderBy != nil {
		key := req.OrderBy.Key
		sort.SliceStable(selected, func(i, j int) bool {
			a, _ := integerField(selected[i].Payload, key)
			b, _ := integerField(selected[j].Payload, key)
			if req.OrderBy.Descending {
				return a > b
			}
			return a < b
		})
	}

	var next *PointID
	if uint32(len(selected)) > req.Limit {
		if req.OrderBy == nil {
			id := selected[req.Limit].ID
			next = &id
		}
		selected = selected[:req.Limit]
	}

	out := make([]*Point, len(selected))
	for i, p := range selected {
		out[i] = &Point{ID: p.ID, Payload: clonePayload(p.Payload)}
	}
	return out, next, nil
}

func (m *MemoryStorage) Close() error { return nil }

func (c *memoryCollection) compact() {
	kept := c.order[:0]
	for _, key := range c.order {
		if _, ok := c.points[key]; ok {
			kept = append(kept, key)
		}
	}
	c.order = kept
}

func matches(payload map[string]any, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		v, ok := payload[cond.Key].(string)
		if !ok || v != cond.Value {
			return false
		}
	}
	return true
}

func integerField(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func score(distance Distance, a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if distance == DistanceDot {
		return float32(dot)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func clonePoint(p *Point) *Point {
	vec := make([]float32, len(p.Vector))
	copy(vec, p.Vector)
	return &Point{ID: p.ID, Vector: vec, Payload: clonePayload(p.Payload)}
}

func clonePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// byID returns the collection's points sorted by id.
func (c *memoryCollection) byID() []*Point {
	points := make([]*Point, 0, len(c.points))
	for _, key := range c.order {
		points = append(points, c.points[key])
	}
	sort.Slice(points, func(i, j int) bool { return lessID(points[i].ID, points[j].ID) })
	return points
}

func lessID(a, b PointID) bool {
	switch {
	case a.IsUUID() != b.IsUUID():
		return !a.IsUUID()
	case a.IsUUID():
		return a.UUID < b.UUID
	default:
		return a.Num < b.Num
	}
}
