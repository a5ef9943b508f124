// Package records stores extracted documents per user and queries them back.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Reserved record keys.
const (
	FieldID           = "_id"
	FieldDocumentType = "document_type"
	FieldTimestamp    = "timestamp"
)

// AllTypes matches every document type when fetching (case-insensitive).
const AllTypes = "all"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidJSON  = errors.New("invalid JSON document")
)

// Record is a stored document: arbitrary extracted fields plus the reserved keys.
type Record map[string]any

// ID returns the stored identifier, if any.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// DocumentType returns the record's type tag.
func (r Record) DocumentType() string {
	t, _ := r[FieldDocumentType].(string)
	return t
}

// FetchResult is the answer to a fetch. Records is never nil.
type FetchResult struct {
	Found   bool
	Message string
	Records []Record
}

// NoDataMessage is the message returned when a fetch matches nothing.
func NoDataMessage(userID, documentType string) string {
	return fmt.Sprintf("No data found for User %s and Document Type '%s'", userID, documentType)
}

// DecodeObject parses a single JSON object. Numbers stay json.Number so
// integers beyond 2^53 survive storage unchanged.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	if out == nil {
		return nil, errors.New("expected a JSON object")
	}
	return out, nil
}
