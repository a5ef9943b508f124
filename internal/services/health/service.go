package health

import (
	"context"
	"time"
)

// Database states reported by Status.
const (
	DatabaseUp           = "up"
	DatabaseDown         = "down"
	DatabaseUnconfigured = "unconfigured"
)

// Pinger is anything that can report database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a new health service. db may be nil when no
// database is configured.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Status pings the database. The process is considered healthy even when
// the database is down; the field reports it separately.
func (s *Service) Status(ctx context.Context) Status {
	if s.DB == nil {
		return Status{OK: true, Database: DatabaseUnconfigured}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		return Status{OK: true, Database: DatabaseDown}
	}
	return Status{OK: true, Database: DatabaseUp}
}
