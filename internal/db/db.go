// Package db provides the PostgreSQL repositories. All repositories accept a
// DBTX, satisfied by both *pgxpool.Pool and pgx.Tx, so the same code runs
// inside or outside a transaction.
//
// Tables:
//
//	users(id, username, created_at)
//	prompts(id, user_id, text, is_active, created_at)
//	credentials(user_id, token_value, token_iv, token_tag, token_hash, expires_at, updated_at)
//	scheduled_posts(id, user_id UNIQUE, schedule_type, interval_value, interval_unit,
//	    time_of_day, time_zone_id, last_posted_at, next_scheduled_at, status,
//	    lease_expires_at, created_at, updated_at)
//	content_items(id, user_id, prompt_id, text, content_hash, embedding, created_at)
//	job_locks(id, worker_id, locked_at, expires_at)
//	job_history(id, job_type, started_at, finished_at, status, items_count, error)
package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
