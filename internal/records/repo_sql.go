package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docproc/internal/shared/storage/db"
)

// SQLRepo stores records as JSON payloads in a single document_records table.
// Storage order is the insertion sequence.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
	now     func() time.Time
}

// NewSQLRepo constructs a SQLRepo for an open connection.
func NewSQLRepo(conn *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: conn, Dialect: dialect, now: time.Now}
}

// Insert implements Repo.
func (r *SQLRepo) Insert(ctx context.Context, namespace string, doc Record) (string, error) {
	const query = `
INSERT INTO document_records (
    id,
    namespace,
    document_type,
    payload,
    created_at
) VALUES (?, ?, ?, ?, ?)`

	body := make(Record, len(doc))
	for k, v := range doc {
		if k != FieldID {
			body[k] = v
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	var createdAt any = now().UTC()
	if r.Dialect == db.SQLite {
		createdAt = now().UTC().Format(time.RFC3339Nano)
	}

	id := uuid.NewString()
	_, err = r.DB.ExecContext(
		ctx,
		db.Rebind(r.Dialect, query),
		id,
		namespace,
		doc.DocumentType(),
		string(payload),
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// Find implements Repo.
func (r *SQLRepo) Find(ctx context.Context, namespace, documentType string) ([]Record, error) {
	query := `
SELECT id, payload
FROM document_records
WHERE namespace = ?`
	args := []any{namespace}
	if documentType != "" {
		query += ` AND document_type = ?`
		args = append(args, documentType)
	}
	query += `
ORDER BY seq ASC`

	rows, err := r.DB.QueryContext(ctx, db.Rebind(r.Dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := DecodeObject(payload)
		if err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		rec[FieldID] = id
		out = append(out, Record(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping implements Repo.
func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// Close implements Repo.
func (r *SQLRepo) Close(ctx context.Context) error {
	return r.DB.Close()
}

var _ Repo = (*SQLRepo)(nil)
