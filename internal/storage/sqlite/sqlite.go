// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS buy_attempts (
	id            TEXT PRIMARY KEY,
	mint          TEXT NOT NULL,
	pool_id       TEXT NOT NULL,
	creation_tx   TEXT NOT NULL,
	quote_reserve INTEGER NOT NULL,
	status        TEXT NOT NULL,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	tx_ids        TEXT NOT NULL DEFAULT '',
	confirmed     INTEGER NOT NULL DEFAULT 0,
	partial       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_buy_attempts_mint ON buy_attempts(mint, started_at);
CREATE INDEX IF NOT EXISTS idx_buy_attempts_started ON buy_attempts(started_at);
`

const attemptColumns = `id, mint, pool_id, creation_tx, quote_reserve, status, retry_count,
	tx_ids, confirmed, partial, error_message, started_at, finished_at`

// AttemptStore implements storage.AttemptStore on a local SQLite file.
type AttemptStore struct {
	db *sql.DB
}

var _ storage.AttemptStore = (*AttemptStore)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*AttemptStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// один писатель, иначе SQLITE_BUSY под нагрузкой
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &AttemptStore{db: db}, nil
}

func (s *AttemptStore) Record(ctx context.Context, a *domain.BuyAttempt) error {
	if err := storage.Validate(a); err != nil {
		return err
	}
	rec := models.FromDomain(a)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buy_attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Mint,
		rec.PoolID,
		rec.CreationTx,
		int64(rec.QuoteReserve),
		rec.Status,
		rec.RetryCount,
		strings.Join(rec.TxIDs, ","),
		rec.Confirmed,
		rec.Partial,
		rec.Error,
		rec.StartedAt.UnixMilli(),
		rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, id string) (*models.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM buy_attempts WHERE id = ?`, id)
	rec, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return rec, nil
}

func (s *AttemptStore) ListByMint(ctx context.Context, mint string) ([]*models.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptColumns+` FROM buy_attempts
		WHERE mint = ? ORDER BY started_at ASC, id ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("list attempts by mint: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *AttemptStore) ListRecent(ctx context.Context, limit int) ([]*models.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptColumns+` FROM buy_attempts
		ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent attempts: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *AttemptStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*models.Attempt, error) {
	var (
		rec               models.Attempt
		reserve           int64
		txIDs             string
		started, finished int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Mint,
		&rec.PoolID,
		&rec.CreationTx,
		&reserve,
		&rec.Status,
		&rec.RetryCount,
		&txIDs,
		&rec.Confirmed,
		&rec.Partial,
		&rec.Error,
		&started,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	rec.QuoteReserve = uint64(reserve)
	rec.TxIDs = []string{}
	if txIDs != "" {
		rec.TxIDs = strings.Split(txIDs, ",")
	}
	rec.StartedAt = time.UnixMilli(started).UTC()
	rec.FinishedAt = time.UnixMilli(finished).UTC()
	return &rec, nil
}

func scanAttempts(rows *sql.Rows) ([]*models.Attempt, error) {
	var out []*models.Attempt
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}
