package auth

import (
	"context"
	"errors"

	"PPCollab/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeSQL = `SELECT is_active FROM users WHERE id = $1`

// rowQuerier is the slice of *pgxpool.Pool the checker needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgActiveChecker reads users.is_active. Unknown users are inactive.
type PgActiveChecker struct {
	db rowQuerier
}

func NewPgActiveChecker(pool *pgxpool.Pool) *PgActiveChecker {
	return &PgActiveChecker{db: pool}
}

func (p *PgActiveChecker) IsActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := p.db.QueryRow(ctx, activeSQL, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.WrapMsg(err, "query is_active", "user", userID)
	}
	return active, nil
}

// OpenPool connects and pings once so a bad DSN fails at startup.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.WrapMsg(err, "pgxpool.New")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "pgx ping")
	}
	return pool, nil
}
