package records

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"docproc/internal/shared/storage/db"
)

// Open picks a repository from the scheme of uri:
// mongodb:// and mongodb+srv:// use MongoDB, postgres:// and sqlite:// use SQL
// (migrations applied on open), memory:// keeps records in process.
func Open(ctx context.Context, uri, database string) (Repo, error) {
	raw := strings.TrimSpace(uri)
	if raw == "" {
		return nil, fmt.Errorf("database URI is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse database URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return NewMongoRepo(ctx, raw, database)
	case "memory":
		return NewMemoryRepo(), nil
	default:
		conn, dialect, err := db.Connect(ctx, raw, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, conn, dialect); err != nil {
			conn.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return NewSQLRepo(conn, dialect), nil
	}
}
