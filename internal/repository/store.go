package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store groups every repository behind one handle and runs multi-statement
// changes in a transaction.
type Store interface {
	Users() UserRepository
	Cycles() CycleRepository
	Topics() TopicRepository
	Quotas() QuotaRepository
	Codes() CodeRepository
	Shares() ShareRepository
	Usage() UsageRepository
	Webhooks() WebhookRepository
	Analytics() AnalyticsRepository
	Prompts() PromptRepository
	Admins() AdminRepository

	// WithTx runs fn inside a read-committed transaction. Callers serialise
	// per-user work by locking the user row first (UserRepository.LockByID).
	// Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewStore creates a Store backed by the pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Users() UserRepository { return NewUserRepo(s.db) }
func (s *pgStore) Cycles() CycleRepository { return NewCycleRepo(s.db) }
func (s *pgStore) Topics() TopicRepository { return NewTopicRepo(s.db) }
func (s *pgStore) Quotas() QuotaRepository { return NewQuotaRepo(s.db) }
func (s *pgStore) Codes() CodeRepository { return NewCodeRepo(s.db) }
func (s *pgStore) Shares() ShareRepository { return NewShareRepo(s.db) }
func (s *pgStore) Usage() UsageRepository { return NewUsageRepo(s.db) }
func (s *pgStore) Webhooks() WebhookRepository { return NewWebhookRepo(s.db) }
func (s *pgStore) Analytics() AnalyticsRepository { return NewAnalyticsRepo(s.db) }
func (s *pgStore) Prompts() PromptRepository { return NewPromptRepo(s.db) }
func (s *pgStore) Admins() AdminRepository { return NewAdminRepo(s.db) }

func (s *pgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *pgStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(&pgStore{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
