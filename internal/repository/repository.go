// Package repository handles all interactions with the database.
//
// Each repository owns the SQL for one table and returns model types.
// Missing rows are tagged with their table through sqlerr.WrapNotFound so
// the global error handler can answer "Order not found" instead of a bare 404.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx, so repository methods
// can run inside or outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ dbtx = (*pgxpool.Pool)(nil)
