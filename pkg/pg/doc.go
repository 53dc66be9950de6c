// Package pg connects to PostgreSQL through a pgx pool and owns the
// notifykit schema.
//
// Connect retries the initial connection with a growing delay and pings the
// server before returning. Migrate applies the SQL files embedded from the
// migrations directory with goose, recording versions in the table named by
// Config.MigrationsTable. WithTx runs a function inside a transaction and
// retries it on serialization failures and deadlocks.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//		return err
//	}
//
// Error helpers such as IsDuplicateKeyError and IsRetryableTxError inspect
// the PostgreSQL error code behind a wrapped error.
package pg
