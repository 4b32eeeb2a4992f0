package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=bundlemarket sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the ledger tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id         BIGSERIAL PRIMARY KEY,
	registry   TEXT        NOT NULL,
	asset_id   TEXT        NOT NULL,
	seller     TEXT        NOT NULL,
	status     TEXT        NOT NULL,
	listed_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bundles (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT        NOT NULL DEFAULT '',
	description     TEXT        NOT NULL DEFAULT '',
	seller          TEXT        NOT NULL,
	item_ids        BIGINT[]    NOT NULL,
	price           NUMERIC     NOT NULL,
	required_buyers INTEGER     NOT NULL,
	status          TEXT        NOT NULL,
	has_assignment  BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bundle_buyers (
	bundle_id      BIGINT   NOT NULL REFERENCES bundles(id),
	buyer          TEXT     NOT NULL,
	position       INTEGER  NOT NULL,
	item_ids       BIGINT[] NOT NULL,
	assigned_value NUMERIC,
	paid           BOOLEAN  NOT NULL DEFAULT FALSE,
	PRIMARY KEY (bundle_id, buyer)
);
`
