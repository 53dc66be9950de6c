package pg

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

const maxTxRetries = 3

// WithTx runs fn in a read-committed transaction and commits it. Transactions
// that fail with a serialization failure or deadlock are retried with
// exponential backoff; any other error rolls back and is returned.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	base := 50 * time.Millisecond

	for attempt := 0; ; attempt++ {
		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsRetryableTxError(err) || attempt >= maxTxRetries {
			return err
		}

		wait := time.Duration(1<<attempt) * base
		wait += time.Duration(rand.Int64N(int64(wait / 5)))
		slog.DebugContext(ctx, "retrying transaction",
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return errors.Join(ErrTransaction, ctx.Err(), err)
		case <-time.After(wait):
		}
	}
}

func runTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Join(ErrTransaction, err)
	}
	// Rollback after Commit is a no-op returning ErrTxClosed.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
