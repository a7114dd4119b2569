// internal/storage/postgres/attempt_store.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/models"
)

const attemptColumns = `id, mint, pool_id, creation_tx, quote_reserve, status, retry_count,
	tx_ids, confirmed, partial, error_message, started_at, finished_at`

// AttemptStore implements storage.AttemptStore on PostgreSQL.
type AttemptStore struct {
	pool *Pool
	// ownsPool is set when Close must release the pool.
	ownsPool bool
}

var _ storage.AttemptStore = (*AttemptStore)(nil)

// NewAttemptStore wraps an existing, migrated pool.
func NewAttemptStore(pool *Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Open connects to dsn, applies the schema and returns a store owning its pool.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*AttemptStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &AttemptStore{pool: pool, ownsPool: true}, nil
}

// Record inserts a terminal attempt. Returns ErrDuplicateKey if the id exists.
func (s *AttemptStore) Record(ctx context.Context, a *domain.BuyAttempt) error {
	if err := storage.Validate(a); err != nil {
		return err
	}
	rec := models.FromDomain(a)

	query := `INSERT INTO buy_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Mint,
		rec.PoolID,
		rec.CreationTx,
		int64(rec.QuoteReserve),
		rec.Status,
		rec.RetryCount,
		rec.TxIDs,
		rec.Confirmed,
		rec.Partial,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get returns one attempt. Returns ErrNotFound if not exists.
func (s *AttemptStore) Get(ctx context.Context, id string) (*models.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM buy_attempts WHERE id = $1`, id)
	rec, err := scanAttempt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return rec, nil
}

func (s *AttemptStore) ListByMint(ctx context.Context, mint string) ([]*models.Attempt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM buy_attempts
		WHERE mint = $1 ORDER BY started_at ASC, id ASC`, mint)
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
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM buy_attempts
		ORDER BY started_at DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent attempts: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *AttemptStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func scanAttempt(row pgx.Row) (*models.Attempt, error) {
	var rec models.Attempt
	var reserve int64
	err := row.Scan(
		&rec.ID,
		&rec.Mint,
		&rec.PoolID,
		&rec.CreationTx,
		&reserve,
		&rec.Status,
		&rec.RetryCount,
		&rec.TxIDs,
		&rec.Confirmed,
		&rec.Partial,
		&rec.Error,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.QuoteReserve = uint64(reserve)
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return &rec, nil
}

func scanAttempts(rows pgx.Rows) ([]*models.Attempt, error) {
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
