//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTotals(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	owner := createOwner(t, pool, "anil")
	other := createOwner(t, pool, "bina")

	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	w := model.StatsWindow{
		YesterdayStart: today.AddDate(0, 0, -1),
		TodayStart:     today,
		TomorrowStart:  today.AddDate(0, 0, 1),
	}

	seed := []orderAt{
		{at: today.Add(9 * time.Hour), name: strPtr("Priya"), pages: 3, copies: 2, amount: "10.00", status: model.PrintStatusComplete},
		{at: today.Add(10 * time.Hour), name: strPtr("Priya"), pages: 1, copies: 1, amount: "5.50"},
		{at: today, name: strPtr(""), pages: 2, copies: 3, amount: "1.00", status: model.PrintStatusComplete},
		{at: today.Add(-time.Second), name: strPtr("Ravi"), pages: 4, copies: 1, amount: "7.00", status: model.PrintStatusComplete},
		{at: w.TomorrowStart, pages: 1, copies: 1},
		// the page product alone exceeds a 32-bit integer
		{at: today.AddDate(0, 0, -3), name: strPtr("Bulk"), pages: 100000, copies: 100000, status: model.PrintStatusComplete},
	}
	for _, o := range seed {
		seedOrder(t, pool, owner, o)
	}
	seedOrder(t, pool, other, orderAt{at: today.Add(time.Hour), name: strPtr("Elsewhere"), pages: 9, copies: 9, amount: "99.00", status: model.PrintStatusComplete})

	totals, err := repo.Totals(ctx, owner.UniqueURL, w)
	require.NoError(t, err)

	assert.Equal(t, int64(3), totals.Today.Orders)
	assert.True(t, decimal.RequireFromString("16.50").Equal(totals.Today.Revenue), totals.Today.Revenue.String())
	assert.Equal(t, int64(1), totals.Today.Customers, "blank names are not customers")
	assert.Equal(t, int64(12), totals.Today.PrintedPages, "only completed orders count")

	assert.Equal(t, int64(1), totals.Yesterday.Orders)
	assert.True(t, decimal.RequireFromString("7").Equal(totals.Yesterday.Revenue), totals.Yesterday.Revenue.String())
	assert.Equal(t, int64(1), totals.Yesterday.Customers)
	assert.Equal(t, int64(4), totals.Yesterday.PrintedPages)

	assert.Equal(t, int64(6), totals.Overall.Orders)
	assert.True(t, decimal.RequireFromString("23.50").Equal(totals.Overall.Revenue), totals.Overall.Revenue.String())
	assert.Equal(t, int64(3), totals.Overall.Customers)
	assert.Equal(t, int64(10_000_000_016), totals.Overall.PrintedPages)
}

func TestOrderTotalsEmptyShop(t *testing.T) {
	pool := newTestPool(t)
	owner := createOwner(t, pool, "empty")

	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	totals, err := NewOrderRepository(pool).Totals(context.Background(), owner.UniqueURL, model.StatsWindow{
		YesterdayStart: today.AddDate(0, 0, -1),
		TodayStart:     today,
		TomorrowStart:  today.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	assert.Zero(t, totals.Overall.Orders)
	assert.True(t, totals.Overall.Revenue.IsZero())
	assert.Zero(t, totals.Overall.PrintedPages)
}

func TestOrderFilterSearchIsLiteral(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	owner := createOwner(t, pool, "chandra")

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"50% off", "5000", "a_b", "axb", `back\slash`} {
		seedOrder(t, pool, owner, orderAt{at: at.Add(time.Duration(i) * time.Minute), name: strPtr(name), copies: 1})
	}
	seedOrder(t, pool, owner, orderAt{at: at, orderID: "ORD_77", copies: 1})

	cases := map[string][]string{
		"%":   {"50% off"},
		"0%":  {"50% off"},
		"_":   {"a_b", ""},
		"A_B": {"a_b"},
		`\`:   {`back\slash`},
		"AXB": {"axb"},
	}
	for search, want := range cases {
		f := model.OrderFilter{Search: search, Limit: 20}

		n, err := repo.CountFiltered(ctx, owner.ID, f)
		require.NoError(t, err, search)
		assert.Equal(t, len(want), n, search)

		orders, err := repo.ListFiltered(ctx, owner.ID, f)
		require.NoError(t, err, search)
		got := make([]string, 0, len(orders))
		for _, o := range orders {
			got = append(got, o.Customer())
		}
		assert.ElementsMatch(t, want, got, search)
	}
}

func TestOrderFilterDateRangeAndStatus(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	owner := createOwner(t, pool, "devi")

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	seedOrder(t, pool, owner, orderAt{at: day.Add(-time.Second), orderID: "before", copies: 1})
	seedOrder(t, pool, owner, orderAt{at: day, orderID: "first", copies: 1, status: model.PrintStatusComplete})
	seedOrder(t, pool, owner, orderAt{at: next.Add(-time.Second), orderID: "last", copies: 1})
	seedOrder(t, pool, owner, orderAt{at: next, orderID: "after", copies: 1})

	f := model.OrderFilter{From: &day, To: &next, Limit: 20}
	orders, err := repo.ListFiltered(ctx, owner.ID, f)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "last", orders[0].ClientOrderID(), "newest first")
	assert.Equal(t, "first", orders[1].ClientOrderID())

	f.Status = "complete"
	n, err := repo.CountFiltered(ctx, owner.ID, f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page := model.OrderFilter{Limit: 1, Offset: 3}
	orders, err = repo.ListFiltered(ctx, owner.ID, page)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "before", orders[0].ClientOrderID())
}

func TestOrderActivitySince(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	owner := createOwner(t, pool, "esha")
	other := createOwner(t, pool, "farid")

	now := time.Now().UTC().Truncate(time.Second)
	since := now.Add(-time.Hour)

	seedOrder(t, pool, owner, orderAt{at: now.Add(-48 * time.Hour), name: strPtr("Regular"), copies: 1})
	seedOrder(t, pool, owner, orderAt{at: now.Add(-30 * time.Minute), name: strPtr("Regular"), copies: 1, paid: true})
	seedOrder(t, pool, owner, orderAt{at: now.Add(-20 * time.Minute), name: strPtr("Fresh"), copies: 1, status: model.PrintStatusComplete})
	seedOrder(t, pool, owner, orderAt{at: now.Add(-10 * time.Minute), name: strPtr("Fresh"), copies: 1})
	seedOrder(t, pool, owner, orderAt{at: now.Add(-5 * time.Minute), name: strPtr(""), copies: 1})
	seedOrder(t, pool, other, orderAt{at: now.Add(-5 * time.Minute), name: strPtr("Stranger"), copies: 1, paid: true})

	src, err := repo.ActivitySince(ctx, owner.ID, since)
	require.NoError(t, err)

	assert.Len(t, src.NewOrders, 4)
	assert.Len(t, src.PaidOrders, 1)
	require.Len(t, src.Completed, 1)
	assert.Equal(t, "Fresh", src.Completed[0].Customer())

	require.Len(t, src.NewCustomers, 1, "returning and blank customers are not new")
	assert.Equal(t, "Fresh", src.NewCustomers[0].Name)
	assert.WithinDuration(t, now.Add(-20*time.Minute), src.NewCustomers[0].FirstOrderAt, time.Second)
}

func TestOrderActivitySinceCapsEachKind(t *testing.T) {
	pool := newTestPool(t)
	owner := createOwner(t, pool, "gita")

	now := time.Now().UTC()
	for i := range activityPerKind + 3 {
		seedOrder(t, pool, owner, orderAt{at: now.Add(-time.Duration(i) * time.Minute), copies: 1, paid: true})
	}

	src, err := NewOrderRepository(pool).ActivitySince(context.Background(), owner.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, src.NewOrders, activityPerKind)
	assert.Len(t, src.PaidOrders, activityPerKind)
}
