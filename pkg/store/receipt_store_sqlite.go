package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"

	_ "modernc.org/sqlite"
)

type SQLiteReceiptStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database at path and prepares the schema. Use
// ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLiteReceiptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteReceiptStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteReceiptStore(db *sql.DB) (*SQLiteReceiptStore, error) {
	s := &SQLiteReceiptStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReceiptStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS receipts (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        receipt_type TEXT NOT NULL,
        ts TEXT NOT NULL,
        tenant_id TEXT NOT NULL,
        payload_hash TEXT NOT NULL,
        body JSON NOT NULL,
        recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS receipts_payload_hash_idx ON receipts (payload_hash);
	CREATE INDEX IF NOT EXISTS receipts_type_idx ON receipts (receipt_type);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Close closes the underlying database.
func (s *SQLiteReceiptStore) Close() error { return s.db.Close() }

func (s *SQLiteReceiptStore) Write(ctx context.Context, r *receipts.Receipt) error {
	query := `INSERT INTO receipts (
		receipt_type, ts, tenant_id, payload_hash, body, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?)`

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	recordedAt := s.now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, query,
		r.Type, r.TS, r.TenantID, r.PayloadHash, string(body), recordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteReceiptStore) Get(ctx context.Context, payloadHash string) (*receipts.Receipt, error) {
	query := `
        SELECT body
        FROM receipts
        WHERE payload_hash = ?
        ORDER BY seq
        LIMIT 1
    `
	return queryOne(ctx, s.db, query, payloadHash)
}

func (s *SQLiteReceiptStore) List(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	query := `
        SELECT body
        FROM receipts
        ORDER BY seq
        LIMIT ?
    `
	return queryMany(ctx, s.db, query, limit)
}

func (s *SQLiteReceiptStore) ListByType(ctx context.Context, receiptType string, limit int) ([]*receipts.Receipt, error) {
	query := `
        SELECT body
        FROM receipts
        WHERE receipt_type = ?
        ORDER BY seq
        LIMIT ?
    `
	return queryMany(ctx, s.db, query, receiptType, limit)
}

// Count returns the number of stored receipts.
func (s *SQLiteReceiptStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
