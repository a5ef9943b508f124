package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"docproc/internal/shared/telemetry"
)

// Service adds record metadata and applies fetch filtering rules on top of a Repo.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service using the wall clock.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// Store inserts fields into the user's namespace with timestamp and
// document_type set, and returns the stored record including _id.
func (s *Service) Store(ctx context.Context, userID, documentType string, fields map[string]any) (Record, error) {
	ns, err := Namespace(userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(documentType) == "" {
		return nil, fmt.Errorf("%w: documentType is required", ErrInvalidInput)
	}

	rec := make(Record, len(fields)+3)
	for k, v := range fields {
		rec[k] = v
	}
	delete(rec, FieldID)
	rec[FieldTimestamp] = s.now().UTC().Format(time.RFC3339Nano)
	rec[FieldDocumentType] = documentType

	id, err := s.Repo.Insert(ctx, ns, rec)
	if err != nil {
		return nil, err
	}
	rec[FieldID] = id

	telemetry.Info("records.stored", map[string]any{
		"namespace":     ns,
		"document_type": documentType,
		"record_id":     id,
	})
	return rec, nil
}

// StoreFile loads a JSON object from path and stores it.
func (s *Service) StoreFile(ctx context.Context, path, userID, documentType string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fields, err := DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidJSON, path, err)
	}
	return s.Store(ctx, userID, documentType, fields)
}

// Fetch returns the user's records of documentType, or every record when
// documentType equals "all" in any letter case. No match is not an error.
func (s *Service) Fetch(ctx context.Context, userID, documentType string) (FetchResult, error) {
	ns, err := Namespace(userID)
	if err != nil {
		return FetchResult{}, err
	}
	if strings.TrimSpace(documentType) == "" {
		return FetchResult{}, fmt.Errorf("%w: documentType is required", ErrInvalidInput)
	}

	filter := documentType
	if strings.EqualFold(documentType, AllTypes) {
		filter = ""
	}
	recs, err := s.Repo.Find(ctx, ns, filter)
	if err != nil {
		return FetchResult{}, err
	}
	if len(recs) == 0 {
		return FetchResult{
			Found:   false,
			Message: NoDataMessage(userID, documentType),
			Records: []Record{},
		}, nil
	}
	return FetchResult{
		Found:   true,
		Message: "Fetch successful",
		Records: recs,
	}, nil
}

// Ping reports whether the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.Repo.Ping(ctx)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
