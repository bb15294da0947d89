package usage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/HeiSir2014/OpenAIRouter/internal/storage/dialect"
)

// SQLConfig holds database connection configuration for the SQL sink.
type SQLConfig struct {
	Driver string // sqlite, postgres, mysql
	DSN    string
}

// SQLStore persists usage records to a relational database.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var (
	_ Sink   = (*SQLStore)(nil)
	_ Reader = (*SQLStore)(nil)
)

// NewSQLStore opens the database, runs dialect initialization, and
// ensures the usage schema exists.
func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &SQLStore{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite opens a SQLite-backed store at the given path.
func NewSQLite(dbPath string) (*SQLStore, error) {
	return NewSQLStore(SQLConfig{Driver: "sqlite", DSN: dbPath})
}

func (s *SQLStore) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS usage_records (
id TEXT PRIMARY KEY,
request_id TEXT,
caller TEXT NOT NULL,
provider TEXT NOT NULL,
model TEXT NOT NULL,
prompt_tokens INTEGER NOT NULL DEFAULT 0,
completion_tokens INTEGER NOT NULL DEFAULT 0,
total_tokens INTEGER NOT NULL DEFAULT 0,
cost DOUBLE PRECISION NOT NULL DEFAULT 0,
latency_ns INTEGER NOT NULL DEFAULT 0,
success %s NOT NULL,
error TEXT,
created_at %s NOT NULL
)`, s.dialect.BooleanType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_usage_caller ON usage_records(caller, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records(provider)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Record implements Sink.
func (s *SQLStore) Record(ctx context.Context, rec *Record) error {
	normalize(rec)

	query := s.dialect.Rebind(`INSERT INTO usage_records
(id, request_id, caller, provider, model, prompt_tokens, completion_tokens, total_tokens, cost, latency_ns, success, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Caller, rec.Provider, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Cost, int64(rec.Latency), rec.Success, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// ListByCaller implements Reader.
func (s *SQLStore) ListByCaller(ctx context.Context, caller string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.dialect.Rebind(`SELECT id, request_id, caller, provider, model, prompt_tokens, completion_tokens, total_tokens, cost, latency_ns, success, error, created_at
FROM usage_records WHERE caller = ?
ORDER BY created_at DESC
LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, caller, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var latency int64
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.Caller, &rec.Provider, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.Cost, &latency, &rec.Success, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Latency = time.Duration(latency)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
