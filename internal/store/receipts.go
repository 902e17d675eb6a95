// Package store persists purchase transaction records in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown (chain, hash) pair.
var ErrNotFound = errors.New("receipt not found")

// Status values stored alongside each record.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusReverted  = "reverted"
)

// ReceiptStore is an sqlite table of transaction records keyed by chain and
// hash. Recording the same hash again updates it in place.
type ReceiptStore struct {
	db *sql.DB
}

// OpenReceiptStore opens (or creates) dataDir/receipts.db.
func OpenReceiptStore(dataDir string) (*ReceiptStore, error) {
	return OpenReceiptStoreDSN(filepath.Join(dataDir, "receipts.db"))
}

// OpenReceiptStoreDSN opens a store at an sqlite DSN. Tests pass ":memory:".
func OpenReceiptStoreDSN(dsn string) (*ReceiptStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open receipts db: %w", err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ReceiptStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS receipts (
	chain_id INTEGER NOT NULL,
	tx_hash TEXT NOT NULL,
	kind TEXT NOT NULL,
	sale TEXT NOT NULL,
	account TEXT NOT NULL,
	amount TEXT NOT NULL,
	status TEXT NOT NULL,
	submitted_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (chain_id, tx_hash)
);
`)
	if err != nil {
		return fmt.Errorf("create receipts table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *ReceiptStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements sale.Recorder.
func (s *ReceiptStore) Record(ctx context.Context, r sale.Receipt) error {
	if s == nil || s.db == nil {
		return errors.New("receipt store not initialized")
	}
	if r.Hash == (common.Hash{}) {
		return errors.New("tx hash is required")
	}
	submitted := r.Submitted
	if submitted.IsZero() {
		submitted = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO receipts (chain_id, tx_hash, kind, sale, account, amount, status, submitted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain_id, tx_hash) DO UPDATE SET
	status=excluded.status,
	updated_at=excluded.updated_at
`, r.ChainID, r.Hash.Hex(), string(r.Kind), r.Sale.Hex(), r.Account.Hex(), r.Amount.String(),
		statusOf(r.TransactionRecord), submitted.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	return nil
}

// Get returns one record.
func (s *ReceiptStore) Get(ctx context.Context, chainID int64, hash common.Hash) (sale.Receipt, error) {
	row := s.db.QueryRowContext(ctx, selectReceipts+` WHERE chain_id = ? AND tx_hash = ?`, chainID, hash.Hex())
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sale.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, hash.Hex())
	}
	return r, err
}

// List returns up to limit records, newest submission first. limit <= 0
// returns everything.
func (s *ReceiptStore) List(ctx context.Context, limit int) ([]sale.Receipt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectReceipts+` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []sale.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const selectReceipts = `SELECT chain_id, tx_hash, kind, sale, account, amount, status, submitted_at FROM receipts`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(row scanner) (sale.Receipt, error) {
	var (
		r                    sale.Receipt
		hash, kind, saleAddr string
		account, amt, status string
		submitted            int64
	)
	if err := row.Scan(&r.ChainID, &hash, &kind, &saleAddr, &account, &amt, &status, &submitted); err != nil {
		return sale.Receipt{}, err
	}
	d, err := decimal.NewFromString(amt)
	if err != nil {
		return sale.Receipt{}, fmt.Errorf("stored amount %q: %w", amt, err)
	}
	r.Hash = common.HexToHash(hash)
	r.Kind = sale.TxKind(kind)
	r.Sale = common.HexToAddress(saleAddr)
	r.Account = common.HexToAddress(account)
	r.Amount = d
	r.Confirmed = status == StatusConfirmed
	r.Reverted = status == StatusReverted
	r.Submitted = time.UnixMilli(submitted)
	return r, nil
}

func statusOf(rec sale.TransactionRecord) string {
	switch {
	case rec.Reverted:
		return StatusReverted
	case rec.Confirmed:
		return StatusConfirmed
	default:
		return StatusPending
	}
}
