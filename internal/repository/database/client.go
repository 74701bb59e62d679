package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
)

// Connect opens a Postgres pool, retrying with fibonacci backoff while the
// database is still coming up.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	var db *sqlx.DB

	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
