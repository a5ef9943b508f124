package records

import "context"

// Repo persists records inside per-user namespaces.
type Repo interface {
	// Insert stores doc and returns its generated identifier.
	Insert(ctx context.Context, namespace string, doc Record) (string, error)
	// Find returns records in storage order; an empty documentType matches all.
	Find(ctx context.Context, namespace, documentType string) ([]Record, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
