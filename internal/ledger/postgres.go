package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements Ledger on a PostgreSQL accounts table. All legs
// of a transfer execute inside one transaction; a debit that would overdraw
// its source account rolls the whole transfer back with ErrRejected.
//
// Schema:
//
//	CREATE TABLE accounts (
//	    account TEXT NOT NULL,
//	    asset   TEXT NOT NULL,
//	    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
//	    PRIMARY KEY (account, asset)
//	);
//	CREATE TABLE transfers (
//	    ref        TEXT PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger initializes a connection pool for the given URL.
func NewPostgresLedger(ctx context.Context, connString string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

// Close closes the connection pool.
func (l *PostgresLedger) Close() {
	l.pool.Close()
}

// Transfer applies all legs in one transaction, recording ref for
// idempotency. A ref that was already committed returns success without
// moving balances again.
func (l *PostgresLedger) Transfer(ctx context.Context, legs []Leg, ref string) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	// Claim the ref first; a duplicate means this transfer already
	// committed in a previous attempt.
	_, err = tx.Exec(ctx, "INSERT INTO transfers (ref) VALUES ($1)", ref)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("failed to record transfer: %w", err)
	}

	for _, leg := range legs {
		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = balance - $3
			 WHERE account = $1 AND asset = $2 AND balance >= $3`,
			leg.From, leg.Asset, leg.Amount)
		if err != nil {
			return fmt.Errorf("failed to debit %s: %w", leg.From, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: insufficient %s balance for %s", ErrRejected, leg.Asset, leg.From)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO accounts (account, asset, balance) VALUES ($1, $2, $3)
			 ON CONFLICT (account, asset) DO UPDATE SET balance = accounts.balance + $3`,
			leg.To, leg.Asset, leg.Amount)
		if err != nil {
			return fmt.Errorf("failed to credit %s: %w", leg.To, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// Balance returns the current balance of an account for an asset. Accounts
// without a row report zero.
func (l *PostgresLedger) Balance(ctx context.Context, account, asset string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx,
		"SELECT balance FROM accounts WHERE account = $1 AND asset = $2",
		account, asset).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
