package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"visubase/internal/baas"
)

// Open connects to the database at creds.URL. A non-empty creds.Key replaces
// the password from the URL.
func Open(ctx context.Context, creds baas.Credentials) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(creds.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if creds.Key != "" {
		cfg.ConnConfig.Password = creds.Key
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Dialer opens a Backend per set of credentials.
var Dialer = baas.DialerFunc(func(ctx context.Context, creds baas.Credentials) (baas.Backend, error) {
	pool, err := Open(ctx, creds)
	if err != nil {
		return nil, err
	}
	return NewBackend(pool), nil
})
