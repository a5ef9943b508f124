package records

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Record // namespace -> records in insertion order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]Record),
	}
}

// Insert stores a deep copy of doc.
func (r *MemoryRepo) Insert(ctx context.Context, namespace string, doc Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored, err := cloneRecord(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	stored[FieldID] = id

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[namespace] = append(r.data[namespace], stored)
	return id, nil
}

// Find returns copies of the matching records.
func (r *MemoryRepo) Find(ctx context.Context, namespace, documentType string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Record{}
	for _, rec := range r.data[namespace] {
		if documentType != "" && rec.DocumentType() != documentType {
			continue
		}
		cp, err := cloneRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Ping implements Repo.
func (r *MemoryRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Repo.
func (r *MemoryRepo) Close(ctx context.Context) error {
	return nil
}

// cloneRecord round-trips through JSON so stored values match what the
// database-backed repos return (numbers as json.Number, nested maps as map[string]any).
func cloneRecord(doc Record) (Record, error) {
	if len(doc) == 0 {
		return Record{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	return Record(out), nil
}

var _ Repo = (*MemoryRepo)(nil)
