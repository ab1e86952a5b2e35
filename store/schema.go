// Package store projects the in-memory chainindex.UtxoIndex onto the flat
// relational tables described by the persistence design, and maintains
// those tables as blocks are applied and rolled back.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tip (
	slot       INTEGER PRIMARY KEY,
	block_id   TEXT NOT NULL,
	block_no   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS utxo_out_ref (
	out_ref    TEXT PRIMARY KEY,
	tx_out     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS unspent_outputs (
	tip_slot   INTEGER NOT NULL REFERENCES tip(slot) ON DELETE CASCADE,
	out_ref    TEXT NOT NULL,
	PRIMARY KEY (tip_slot, out_ref)
);
CREATE INDEX IF NOT EXISTS idx_unspent_out_ref ON unspent_outputs(out_ref);

CREATE TABLE IF NOT EXISTS unmatched_inputs (
	tip_slot   INTEGER NOT NULL REFERENCES tip(slot) ON DELETE CASCADE,
	out_ref    TEXT NOT NULL,
	PRIMARY KEY (tip_slot, out_ref)
);
CREATE INDEX IF NOT EXISTS idx_unmatched_out_ref ON unmatched_inputs(out_ref);

CREATE TABLE IF NOT EXISTS addresses (
	credential TEXT NOT NULL,
	out_ref    TEXT NOT NULL,
	PRIMARY KEY (credential, out_ref)
);
CREATE INDEX IF NOT EXISTS idx_addresses_out_ref ON addresses(out_ref);

CREATE TABLE IF NOT EXISTS asset_classes (
	asset_class TEXT NOT NULL,
	out_ref     TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	PRIMARY KEY (asset_class, out_ref)
);
CREATE INDEX IF NOT EXISTS idx_asset_classes_out_ref ON asset_classes(out_ref);

CREATE TABLE IF NOT EXISTS datums (
	hash   TEXT PRIMARY KEY,
	datum  BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS scripts (
	hash   TEXT PRIMARY KEY,
	script BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS redeemers (
	hash     TEXT PRIMARY KEY,
	redeemer BLOB NOT NULL
);
`

// DB wraps the relational projection's connection. Only one writer is ever
// live at a time, so the pool is pinned to a single connection.
type DB struct {
	sqldb     *sql.DB
	path      string
	batchSize int
}

// BatchSize returns the number of rows execBatchInsert groups per statement.
func (d *DB) BatchSize() int { return d.batchSize }

// SetBatchSize overrides the row batch size used for bulk inserts; n <= 0
// is ignored, leaving the previous value in place.
func (d *DB) SetBatchSize(n int) {
	if n > 0 {
		d.batchSize = n
	}
}

// Open creates (or reuses) the sqlite database at path, applies the schema
// DDL, and turns on WAL mode plus foreign key enforcement.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := sqldb.ExecContext(ctx, schemaDDL); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &DB{sqldb: sqldb, path: path, batchSize: DefaultBatchSize}, nil
}

// OpenMemory opens an in-memory sqlite database, used by tests. It uses a
// shared cache, so every OpenMemory handle open at the same time in one
// process sees the same database.
func OpenMemory(ctx context.Context) (*DB, error) {
	sqldb, err := sql.Open("sqlite", "file::memory:?cache=shared&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("store: open memory: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.ExecContext(ctx, schemaDDL); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{sqldb: sqldb, batchSize: DefaultBatchSize}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sqldb == nil {
		return nil
	}
	return d.sqldb.Close()
}

// Raw exposes the underlying *sql.DB. The query handler does not use it;
// it reads through the DB methods in reads.go and pagination.go.
func (d *DB) Raw() *sql.DB { return d.sqldb }
