package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/trailguard/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Schema creates the incidents table and the severity index that backs
// paginated queries. The index order matches the keyset predicate used by
// QueryBySeverity.
const Schema = `
	CREATE TABLE IF NOT EXISTS incidents (
		incident_id VARCHAR(64) NOT NULL,
		event_time VARCHAR(64) NOT NULL,
		event_id VARCHAR(128) NOT NULL,
		event_name VARCHAR(128) NOT NULL,
		actor TEXT NOT NULL,
		source_ip_address VARCHAR(256) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		is_sensitive BOOLEAN NOT NULL DEFAULT true,
		actor_hour_key TEXT NOT NULL,
		raw_event JSONB,
		recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (incident_id, event_time)
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_severity_time
		ON incidents(severity, event_time DESC, incident_id DESC);
	CREATE INDEX IF NOT EXISTS idx_incidents_event_id ON incidents(event_id);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
