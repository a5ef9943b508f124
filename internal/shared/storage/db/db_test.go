package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, dialect, err := Connect(context.Background(), "postgres://ignored/db", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if dialect != Postgres {
		t.Fatalf("expected postgres dialect, got %s", dialect)
	}
	if stats := db.Stats(); stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
}

func TestConnectSQLiteUsesSingleConnection(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	db, dialect, err := Connect(context.Background(), "sqlite:///tmp/ignored.db", DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if dialect != SQLite {
		t.Fatalf("expected sqlite dialect, got %s", dialect)
	}
	if stats := db.Stats(); stats.MaxOpenConnections != 1 {
		t.Fatalf("expected MaxOpenConnections=1, got %d", stats.MaxOpenConnections)
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		driver  string
		dsn     string
		wantErr bool
	}{
		{in: "postgres://u:p@localhost:5432/docs", dialect: Postgres, driver: "pgx", dsn: "postgres://u:p@localhost:5432/docs"},
		{in: "postgresql://localhost/docs", dialect: Postgres, driver: "pgx", dsn: "postgresql://localhost/docs"},
		{in: "sqlite:///var/lib/docs.db", dialect: SQLite, driver: "sqlite", dsn: "/var/lib/docs.db"},
		{in: "sqlite://data/docs.db", dialect: SQLite, driver: "sqlite", dsn: "data/docs.db"},
		{in: "sqlite://", wantErr: true},
		{in: "mysql://localhost/docs", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		dialect, driver, dsn, err := ParseURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseURL(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", tt.in, err)
		}
		if dialect != tt.dialect || driver != tt.driver || dsn != tt.dsn {
			t.Fatalf("ParseURL(%q) = %s %s %s", tt.in, dialect, driver, dsn)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM t WHERE a = ? AND b = ?"
	if got := Rebind(Postgres, q); got != "SELECT id FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected postgres query %q", got)
	}
	if got := Rebind(SQLite, q); got != q {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
}
