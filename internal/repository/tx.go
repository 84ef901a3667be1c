package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query subset shared by *pgxpool.Pool and pgx.Tx, letting the
// same repository code run against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos bundles the repositories bound to a single transaction.
type Repos struct {
	Users         UserRepository
	Identities    IdentityRepository
	Verifications VerificationRepository
	Tokens        TokenRepository
}

// TxRunner executes fn with repositories bound to one transaction. All
// writes made through r commit together or not at all.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// PgxTxRunner implements TxRunner on a pgx connection pool.
type PgxTxRunner struct {
	pool *pgxpool.Pool
}

var _ TxRunner = (*PgxTxRunner)(nil)

// NewPgxTxRunner wraps the pool.
func NewPgxTxRunner(pool *pgxpool.Pool) *PgxTxRunner {
	return &PgxTxRunner{pool: pool}
}

// WithTx begins a transaction, runs fn with transactional repositories, and
// commits on success or rolls back on error/panic.
func (t *PgxTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	repos := Repos{
		Users:         NewPostgresUserRepo(tx),
		Identities:    NewPostgresIdentityRepo(tx),
		Verifications: NewPostgresVerificationRepo(tx),
		Tokens:        NewPostgresTokenRepo(tx),
	}

	err = fn(ctx, repos)
	return err
}
