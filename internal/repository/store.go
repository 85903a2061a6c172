package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantops.io/mis/internal/domain"
)

// Store adds transactions to Queries.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ExecTx runs fn inside a READ COMMITTED transaction. fn's error rolls back.
func (s *Store) ExecTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateBreakdownChecked applies an operator entry update. When the update
// changes bd_status, the current status is read under a row lock and passed
// to check first, so two concurrent transitions cannot both validate against
// the same starting status.
func (s *Store) UpdateBreakdownChecked(ctx context.Context, p UpdateBreakdownParams, check func(from domain.BreakdownStatus) error) error {
	if p.BDStatus == nil {
		return s.UpdateOperatorEntry(ctx, p)
	}
	return s.ExecTx(ctx, func(q *Queries) error {
		from, err := q.GetBreakdownStatusForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(from); err != nil {
				return err
			}
		}
		return q.UpdateOperatorEntry(ctx, p)
	})
}
