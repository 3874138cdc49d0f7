package db

import (
	"context"
	"fmt"

	"menu-telegram/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// Init opens the pool and checks the connection.
func Init(ctx context.Context, cfg config.DBConfig) error {
	p, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return fmt.Errorf("ping: %w", err)
	}
	Pool = p
	return nil
}

// Enabled reports whether Init succeeded.
func Enabled() bool {
	return Pool != nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
