// Package store persists receipts. Every store is also a receipts.Sink so
// the emitter can write to it directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// ErrNotFound is returned when no receipt matches a lookup.
var ErrNotFound = errors.New("receipt not found")

// ReceiptStore persists and retrieves receipts.
type ReceiptStore interface {
	receipts.Sink
	Get(ctx context.Context, payloadHash string) (*receipts.Receipt, error)
	List(ctx context.Context, limit int) ([]*receipts.Receipt, error)
	ListByType(ctx context.Context, receiptType string, limit int) ([]*receipts.Receipt, error)
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS receipts (
	seq BIGSERIAL PRIMARY KEY,
	receipt_type TEXT NOT NULL,
	ts TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	payload_hash TEXT NOT NULL,
	body JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_payload_hash_idx ON receipts (payload_hash);
CREATE INDEX IF NOT EXISTS receipts_type_idx ON receipts (receipt_type);
`

// PostgresReceiptStore is a durable SQL-based implementation.
type PostgresReceiptStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresReceiptStore(db *sql.DB) *PostgresReceiptStore {
	return &PostgresReceiptStore{db: db, now: time.Now}
}

// Init creates the receipts table if it does not exist.
func (s *PostgresReceiptStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgSchema)
	return err
}

func (s *PostgresReceiptStore) Write(ctx context.Context, r *receipts.Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	query := `
		INSERT INTO receipts (receipt_type, ts, tenant_id, payload_hash, body, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query, r.Type, r.TS, r.TenantID, r.PayloadHash, string(body), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresReceiptStore) Get(ctx context.Context, payloadHash string) (*receipts.Receipt, error) {
	query := `SELECT body FROM receipts WHERE payload_hash = $1 ORDER BY seq LIMIT 1`
	return queryOne(ctx, s.db, query, payloadHash)
}

func (s *PostgresReceiptStore) List(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	query := `SELECT body FROM receipts ORDER BY seq LIMIT $1`
	return queryMany(ctx, s.db, query, limit)
}

func (s *PostgresReceiptStore) ListByType(ctx context.Context, receiptType string, limit int) ([]*receipts.Receipt, error) {
	query := `SELECT body FROM receipts WHERE receipt_type = $1 ORDER BY seq LIMIT $2`
	return queryMany(ctx, s.db, query, receiptType, limit)
}

func queryOne(ctx context.Context, db *sql.DB, query string, args ...any) (*receipts.Receipt, error) {
	var body string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(body)
}

func queryMany(ctx context.Context, db *sql.DB, query string, args ...any) ([]*receipts.Receipt, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*receipts.Receipt
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(body string) (*receipts.Receipt, error) {
	var r receipts.Receipt
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}
