package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ordersTable = "orders"

const orderColumns = `
	id, owner_id, unique_url, order_id, file_urls, file_ids, file_pages,
	paper_size, paper_type, print_color, print_side, binding, number_of_copies,
	no_of_pages, payment_status, payment_amount, payment_method, transaction_id,
	customer_name, print_status, created_at, updated_at`

// activityPerKind caps each kind of recent activity.
const activityPerKind = 5

type OrderRepository struct {
	db dbtx
}

func NewOrderRepository(db dbtx) *OrderRepository {
	return &OrderRepository{db: db}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func (r *OrderRepository) list(ctx context.Context, stmt string, args pgx.NamedArgs) ([]model.Order, error) {
	rows, err := r.db.Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Order])
	if err != nil {
		return nil, fmt.Errorf("failed to collect orders: %w", err)
	}
	return orders, nil
}

// Create stores a customer submission.
func (r *OrderRepository) Create(ctx context.Context, o model.NewOrder) (*model.Order, error) {
	copies := o.NumberOfCopies
	if copies < 1 {
		copies = 1
	}

	fileURLs := o.FileURLs
	if fileURLs == nil {
		fileURLs = map[string]string{}
	}
	fileIDs := o.FileIDs
	if fileIDs == nil {
		fileIDs = map[string]string{}
	}
	filePages := o.FilePages
	if filePages == nil {
		filePages = map[string]int{}
	}

	stmt := `
		INSERT INTO orders (
			owner_id, unique_url, order_id, file_urls, file_ids, file_pages,
			paper_size, paper_type, print_color, print_side, binding,
			number_of_copies, no_of_pages, payment_status, payment_amount,
			payment_method, transaction_id, customer_name
		) VALUES (
			@owner_id, @unique_url, @order_id, @file_urls, @file_ids, @file_pages,
			@paper_size, @paper_type, @print_color, @print_side, @binding,
			@number_of_copies, @no_of_pages, @payment_status, @payment_amount,
			@payment_method, @transaction_id, @customer_name
		)
		RETURNING ` + orderColumns

	rows, err := r.db.Query(ctx, stmt, pgx.NamedArgs{
		"owner_id":         o.OwnerID,
		"unique_url":       o.UniqueURL,
		"order_id":         nullIfEmpty(o.OrderID),
		"file_urls":        fileURLs,
		"file_ids":         fileIDs,
		"file_pages":       filePages,
		"paper_size":       orDefault(o.PaperSize, "A4"),
		"paper_type":       orDefault(o.PaperType, "Portrait"),
		"print_color":      orDefault(o.PrintColor, "Color"),
		"print_side":       orDefault(o.PrintSide, "One-sided"),
		"binding":          orDefault(o.Binding, "None"),
		"number_of_copies": copies,
		"no_of_pages":      o.NoOfPages,
		"payment_status":   o.PaymentStatus,
		"payment_amount":   o.PaymentAmount.Round(2),
		"payment_method":   orDefault(o.PaymentMethod, "Cash"),
		"transaction_id":   nullIfEmpty(o.TransactionID),
		"customer_name":    nullIfEmpty(o.CustomerName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	order, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Order])
	if err != nil {
		return nil, fmt.Errorf("failed to collect order: %w", err)
	}
	return &order, nil
}

// ListByOwner returns every order of an owner, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE owner_id = @owner_id ORDER BY created_at DESC`,
		pgx.NamedArgs{"owner_id": ownerID},
	)
}

// LastUpdatedAt returns the newest updated_at across an owner's orders.
// ok is false when the owner has no orders.
func (r *OrderRepository) LastUpdatedAt(ctx context.Context, ownerID uuid.UUID) (time.Time, bool, error) {
	var last *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MAX(updated_at) FROM orders WHERE owner_id = @owner_id`,
		pgx.NamedArgs{"owner_id": ownerID},
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last update: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

func filterClause(f model.OrderFilter) (string, pgx.NamedArgs) {
	clauses := []string{"owner_id = @owner_id"}
	args := pgx.NamedArgs{}

	if f.Search != "" {
		clauses = append(clauses, `(customer_name ILIKE @search ESCAPE '\' OR order_id ILIKE @search ESCAPE '\')`)
		args["search"] = "%" + escapeLike(f.Search) + "%"
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= @from")
		args["from"] = *f.From
	}
	if f.To != nil {
		clauses = append(clauses, "created_at < @to")
		args["to"] = *f.To
	}
	if f.Status != "" {
		clauses = append(clauses, "LOWER(print_status) = LOWER(@status)")
		args["status"] = f.Status
	}

	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CountFiltered counts the orders matching f.
func (r *OrderRepository) CountFiltered(ctx context.Context, ownerID uuid.UUID, f model.OrderFilter) (int, error) {
	where, args := filterClause(f)
	args["owner_id"] = ownerID

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

// ListFiltered returns one page of orders matching f, newest first.
func (r *OrderRepository) ListFiltered(ctx context.Context, ownerID uuid.UUID, f model.OrderFilter) ([]model.Order, error) {
	where, args := filterClause(f)
	args["owner_id"] = ownerID
	args["limit"] = f.Limit
	args["offset"] = f.Offset

	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+`
		 ORDER BY created_at DESC LIMIT @limit OFFSET @offset`,
		args,
	)
}

// MarkComplete sets an owner's order to Complete. ref matches the
// customer order id, or the row id when ref is a UUID.
func (r *OrderRepository) MarkComplete(ctx context.Context, ownerID uuid.UUID, ref string) (*model.Order, error) {
	args := pgx.NamedArgs{
		"owner_id": ownerID,
		"ref":      ref,
		"status":   model.PrintStatusComplete,
		"row_id":   nil,
	}
	if id, err := uuid.Parse(ref); err == nil {
		args["row_id"] = id
	}

	stmt := `
		UPDATE orders SET print_status = @status
		WHERE id = (
			SELECT id FROM orders
			WHERE owner_id = @owner_id AND (order_id = @ref OR id = @row_id)
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING ` + orderColumns

	rows, err := r.db.Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("failed to update print status: %w", err)
	}

	order, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Order])
	if err != nil {
		return nil, sqlerr.WrapNotFound(ordersTable, err)
	}
	return &order, nil
}

// Totals aggregates a shop's orders for today, yesterday and all time in a
// single scan.
func (r *OrderRepository) Totals(ctx context.Context, uniqueURL string, w model.StatsWindow) (*model.StatsTotals, error) {
	stmt := `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= @today AND created_at < @tomorrow),
			COUNT(*) FILTER (WHERE created_at >= @yesterday AND created_at < @today),
			COUNT(*),

			COALESCE(SUM(payment_amount) FILTER (WHERE created_at >= @today AND created_at < @tomorrow), 0),
			COALESCE(SUM(payment_amount) FILTER (WHERE created_at >= @yesterday AND created_at < @today), 0),
			COALESCE(SUM(payment_amount), 0),

			COUNT(DISTINCT NULLIF(customer_name, '')) FILTER (WHERE created_at >= @today AND created_at < @tomorrow),
			COUNT(DISTINCT NULLIF(customer_name, '')) FILTER (WHERE created_at >= @yesterday AND created_at < @today),
			COUNT(DISTINCT NULLIF(customer_name, '')),

			COALESCE(SUM(no_of_pages::bigint * number_of_copies) FILTER (
				WHERE print_status = @complete AND created_at >= @today AND created_at < @tomorrow), 0),
			COALESCE(SUM(no_of_pages::bigint * number_of_copies) FILTER (
				WHERE print_status = @complete AND created_at >= @yesterday AND created_at < @today), 0),
			COALESCE(SUM(no_of_pages::bigint * number_of_copies) FILTER (WHERE print_status = @complete), 0)
		FROM orders
		WHERE unique_url = @unique_url`

	var t model.StatsTotals
	err := r.db.QueryRow(ctx, stmt, pgx.NamedArgs{
		"unique_url": uniqueURL,
		"yesterday":  w.YesterdayStart,
		"today":      w.TodayStart,
		"tomorrow":   w.TomorrowStart,
		"complete":   model.PrintStatusComplete,
	}).Scan(
		&t.Today.Orders, &t.Yesterday.Orders, &t.Overall.Orders,
		&t.Today.Revenue, &t.Yesterday.Revenue, &t.Overall.Revenue,
		&t.Today.Customers, &t.Yesterday.Customers, &t.Overall.Customers,
		&t.Today.PrintedPages, &t.Yesterday.PrintedPages, &t.Overall.PrintedPages,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order totals: %w", err)
	}
	return &t, nil
}

// Points returns creation time and amount for a shop's orders created at or
// after since, oldest first. A zero since returns every order.
func (r *OrderRepository) Points(ctx context.Context, uniqueURL string, since time.Time) ([]model.OrderPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT created_at, payment_amount FROM orders
		WHERE unique_url = @unique_url AND created_at >= @since
		ORDER BY created_at`,
		pgx.NamedArgs{"unique_url": uniqueURL, "since": since},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart points: %w", err)
	}

	points, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.OrderPoint])
	if err != nil {
		return nil, fmt.Errorf("failed to collect chart points: %w", err)
	}
	return points, nil
}

// ActivitySince gathers the rows behind the recent-activity feed.
func (r *OrderRepository) ActivitySince(ctx context.Context, ownerID uuid.UUID, since time.Time) (*model.ActivitySource, error) {
	args := pgx.NamedArgs{
		"owner_id": ownerID,
		"since":    since,
		"limit":    activityPerKind,
		"complete": model.PrintStatusComplete,
	}

	var (
		src model.ActivitySource
		err error
	)

	src.NewOrders, err = r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE owner_id = @owner_id AND created_at >= @since
		ORDER BY created_at DESC LIMIT @limit`, args)
	if err != nil {
		return nil, err
	}

	src.PaidOrders, err = r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE owner_id = @owner_id AND payment_status AND updated_at >= @since
		ORDER BY updated_at DESC LIMIT @limit`, args)
	if err != nil {
		return nil, err
	}

	src.Completed, err = r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE owner_id = @owner_id AND print_status = @complete AND updated_at >= @since
		ORDER BY updated_at DESC LIMIT @limit`, args)
	if err != nil {
		return nil, err
	}

	// A customer is new when none of their orders predate the window.
	rows, err := r.db.Query(ctx, `
		SELECT o.customer_name, MIN(o.created_at) AS first_order_at
		FROM orders o
		WHERE o.owner_id = @owner_id
		  AND o.created_at >= @since
		  AND COALESCE(o.customer_name, '') <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM orders p
			WHERE p.owner_id = o.owner_id
			  AND p.customer_name = o.customer_name
			  AND p.created_at < @since
		  )
		GROUP BY o.customer_name`, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query new customers: %w", err)
	}

	src.NewCustomers, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.NewCustomer])
	if err != nil {
		return nil, fmt.Errorf("failed to collect new customers: %w", err)
	}

	return &src, nil
}
