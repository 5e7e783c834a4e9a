//go:build integration

package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/database"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testDatabaseURLEnv names a Postgres the integration tests may create
// schemas in. The tests skip when it is unset.
const testDatabaseURLEnv = "AUTOPRINTX_TEST_DATABASE_URL"

// newTestPool migrates a fresh schema and returns a pool scoped to it. The
// schema is dropped when the test ends.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(testDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s is not set", testDatabaseURLEnv)
	}

	ctx := context.Background()
	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema + ", public"

	conn, err := pgx.ConnectConfig(ctx, cfg.ConnConfig.Copy())
	require.NoError(t, err)
	logger := zerolog.Nop()
	require.NoError(t, database.MigrateConn(ctx, &logger, conn))
	require.NoError(t, conn.Close(ctx))

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createOwner(t *testing.T, pool *pgxpool.Pool, username string) *model.Owner {
	t.Helper()
	owner, err := NewOwnerRepository(pool).Create(context.Background(), model.NewOwner{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		UniqueURL:    username + "-shop",
	})
	require.NoError(t, err)
	return owner
}

// orderAt describes one seeded order. Name is stored verbatim, so "" is an
// empty string rather than NULL; nil leaves the column NULL.
type orderAt struct {
	at      time.Time
	name    *string
	orderID string
	pages   int
	copies  int
	amount  string
	status  string
	paid    bool
}

func seedOrder(t *testing.T, pool *pgxpool.Pool, owner *model.Owner, o orderAt) *model.Order {
	t.Helper()
	ctx := context.Background()

	amount := decimal.Zero
	if o.amount != "" {
		amount = decimal.RequireFromString(o.amount)
	}

	order, err := NewOrderRepository(pool).Create(ctx, model.NewOrder{
		OwnerID:        owner.ID,
		UniqueURL:      owner.UniqueURL,
		OrderID:        o.orderID,
		NumberOfCopies: o.copies,
		NoOfPages:      o.pages,
		PaymentStatus:  o.paid,
		PaymentAmount:  amount,
	})
	require.NoError(t, err)

	status := o.status
	if status == "" {
		status = model.PrintStatusPending
	}
	_, err = pool.Exec(ctx, `
		UPDATE orders SET created_at = @at, customer_name = @name, print_status = @status
		WHERE id = @id`,
		pgx.NamedArgs{"id": order.ID, "at": o.at, "name": o.name, "status": status},
	)
	require.NoError(t, err)
	return order
}

func strPtr(s string) *string { return &s }
