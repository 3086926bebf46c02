package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/microblog/internal/db"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store implements db.Store on a pgx pool.
type Store struct {
	*Queries
	pool Pool
}

var _ db.Store = (*Store)(nil)

func NewStore(pool Pool) *Store {
	return &Store{
		Queries: New(pool),
		pool:    pool,
	}
}

func (s *Store) ExecTx(ctx context.Context, fn func(db.Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", normalize(err))
	}

	if err := fn(s.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", normalize(rbErr)))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", normalize(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return normalize(s.pool.Ping(ctx))
}

// Close closes the pool when it is a *pgxpool.Pool.
func (s *Store) Close() error {
	if p, ok := s.pool.(*pgxpool.Pool); ok {
		p.Close()
	}
	return nil
}

// Migrate creates the tweet tables if they do not exist.
func Migrate(ctx context.Context, conn DBTX) error {
	if _, err := conn.Exec(ctx, db.PostgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}
