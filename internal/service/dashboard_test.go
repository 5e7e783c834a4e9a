package service

import (
	"context"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type dashboardFixture struct {
	svc    *DashboardService
	orders *fakeOrders
	owner  *model.Owner
	clock  time.Time
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	s, _ := newTestServer(t)

	owners := &fakeOwners{}
	f := &dashboardFixture{
		orders: &fakeOrders{},
		owner:  owners.add(&model.Owner{Username: "sana", Email: "sana@example.com", UniqueURL: "sana-shop"}),
		// Wednesday
		clock: time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC),
	}
	f.svc = NewDashboardService(s, owners, f.orders)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestBuildStats(t *testing.T) {
	stats := BuildStats(&model.StatsTotals{
		Today:     model.PeriodTotals{Orders: 6, Revenue: decimal.RequireFromString("150.555"), Customers: 3, PrintedPages: 40},
		Yesterday: model.PeriodTotals{Orders: 4, Revenue: decimal.Zero, Customers: 3, PrintedPages: 50},
		Overall:   model.PeriodTotals{Orders: 100, Revenue: decimal.RequireFromString("9999.999"), Customers: 30, PrintedPages: 1000},
	})

	assert.Equal(t, Metric{Today: 6, Yesterday: 4, PercentChange: 50, Overall: 100}, stats.Orders)
	assert.Equal(t, Metric{Today: 150.56, Yesterday: 0, PercentChange: 100, Overall: 10000}, stats.Revenue)
	assert.Equal(t, 0.0, stats.Customers.PercentChange)
	assert.Equal(t, -20.0, stats.PrintedPages.PercentChange)
}

func TestStatsWindow(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	w := StatsWindow(time.Date(2026, 3, 1, 0, 30, 0, 0, loc))

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), w.TodayStart)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, loc), w.YesterdayStart)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), w.TomorrowStart)
}

func TestOverviewIsCached(t *testing.T) {
	f := newDashboardFixture(t)
	f.orders.totals = &model.StatsTotals{Today: model.PeriodTotals{Orders: 2}}
	ctx := context.Background()

	first, err := f.svc.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, first.OrderOverview, 1)
	assert.Equal(t, "sana-shop", first.OrderOverview[0].UniqueURL)
	assert.Equal(t, 2.0, first.OrderOverview[0].DashboardStats.Orders.Today)

	_, err = f.svc.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.orders.totalsHits)

	require.NoError(t, cache.InvalidateOwner(ctx, f.svc.server.Cache, f.owner.ID, "sana-shop", f.clock))
	_, err = f.svc.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.orders.totalsHits)
}

func TestFormatOrder(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	o := model.Order{
		ID:             id,
		PaymentAmount:  decimal.RequireFromString("12.5"),
		CreatedAt:      time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC),
		FileURLs:       map[string]string{"a.pdf": "https://cdn/a.pdf"},
		NumberOfCopies: 2,
	}

	loc := time.FixedZone("IST", 5*3600+1800)
	got := FormatOrder(o, loc)
	assert.Equal(t, "Order-"+id.String(), got.ID)
	assert.Equal(t, "Unknown Customer", got.Customer)
	assert.Equal(t, "Feb 01, 2026", got.Date)
	assert.Equal(t, "₹12.50", got.Amount)
	assert.Equal(t, "Pending", got.Status)
	assert.Equal(t, o.FileURLs, got.FilePath)

	o.OrderID = strPtr("ORD-9")
	o.CustomerName = strPtr("Kiran")
	o.PrintStatus = model.PrintStatusComplete
	got = FormatOrder(o, time.UTC)
	assert.Equal(t, "ORD-9", got.ID)
	assert.Equal(t, "Kiran", got.Customer)
	assert.Equal(t, "Complete", got.Status)
}

func TestRecentOrdersUsesCacheOnlyWhenFresh(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	seedAt := f.clock.Add(-time.Hour)
	f.orders.orders = []model.Order{{ID: uuid.New(), OwnerID: f.owner.ID, CreatedAt: seedAt, UpdatedAt: seedAt}}

	lm, err := f.svc.LastModified(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, seedAt.Format(time.RFC3339Nano), lm)

	first, err := f.svc.RecentOrders(ctx, f.owner.ID, lm)
	require.NoError(t, err)
	assert.Len(t, first.Orders, 1)

	// a row added behind the cache's back is invisible while the tag holds
	f.orders.orders = append(f.orders.orders, model.Order{ID: uuid.New(), OwnerID: f.owner.ID, CreatedAt: seedAt, UpdatedAt: seedAt})
	cached, err := f.svc.RecentOrders(ctx, f.owner.ID, lm)
	require.NoError(t, err)
	assert.Len(t, cached.Orders, 1)

	fresh, err := f.svc.RecentOrders(ctx, f.owner.ID, "newer")
	require.NoError(t, err)
	assert.Len(t, fresh.Orders, 2)
}

func TestLastModifiedWithoutOrders(t *testing.T) {
	f := newDashboardFixture(t)

	lm, err := f.svc.LastModified(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Format(time.RFC3339Nano), lm)
}

func point(at time.Time, amount string) model.OrderPoint {
	return model.OrderPoint{CreatedAt: at, PaymentAmount: decimal.RequireFromString(amount)}
}

func TestBuildChartDay(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)
	chart := BuildChart(ChartDay, []model.OrderPoint{
		point(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), "10"),
		point(time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC), "5.255"),
		point(time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC), "1"),
		point(time.Date(2026, 3, 11, 23, 59, 0, 0, time.UTC), "99"),
	}, now)

	require.Len(t, chart.Labels, 7)
	assert.Equal(t, "12 Mar", chart.Labels[0])
	assert.Equal(t, "18 Mar", chart.Labels[6])

	require.Len(t, chart.Datasets, 2)
	revenue, orders := chart.Datasets[0], chart.Datasets[1]
	assert.Equal(t, "Revenue", revenue.Label)
	assert.Equal(t, "#0a2463", revenue.BorderColor)
	assert.Equal(t, 0.4, revenue.Tension)
	assert.Equal(t, []float64{10, 0, 0, 0, 0, 0, 6.26}, revenue.Data)
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 0, 2}, orders.Data)
	assert.Equal(t, "rgba(33, 118, 255, 0.1)", orders.BackgroundColor)
}

func TestBuildChartWeek(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)
	chart := BuildChart(ChartWeek, []model.OrderPoint{
		point(time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), "1"),
		point(time.Date(2026, 3, 22, 23, 0, 0, 0, time.UTC), "2"),
	}, now)

	assert.Equal(t, []string{
		"23 Feb - 01 Mar",
		"02 Mar - 08 Mar",
		"09 Mar - 15 Mar",
		"16 Mar - 22 Mar",
	}, chart.Labels)
	assert.Equal(t, []float64{1, 0, 0, 1}, chart.Datasets[1].Data)
}

func TestBuildChartMonth(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)
	chart := BuildChart(ChartMonth, []model.OrderPoint{
		point(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), "3"),
		point(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), "4"),
	}, now)

	require.Len(t, chart.Labels, 12)
	assert.Equal(t, "Jan", chart.Labels[0])
	assert.Equal(t, "Dec", chart.Labels[11])
	assert.Equal(t, 3.0, chart.Datasets[0].Data[0])
	assert.Equal(t, 4.0, chart.Datasets[0].Data[11])
}

func TestBuildChartOverall(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)
	chart := BuildChart(ChartOverall, []model.OrderPoint{
		point(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "1"),
		point(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), "2"),
		point(time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), "3"),
	}, now)

	assert.Equal(t, []string{"Nov 2025", "Feb 2026"}, chart.Labels)
	assert.Equal(t, []float64{2, 4}, chart.Datasets[0].Data)
	assert.Equal(t, []float64{1, 2}, chart.Datasets[1].Data)
}

func TestBuildChartUnknownFilter(t *testing.T) {
	chart := BuildChart("fortnight", nil, time.Now())
	assert.NotNil(t, chart.Labels)
	assert.Empty(t, chart.Labels)
	assert.Len(t, chart.Datasets, 2)
}

func TestChartCachesKnownFilters(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	_, err := f.svc.Chart(ctx, f.owner.ID, ChartDay)
	require.NoError(t, err)
	_, err = f.svc.Chart(ctx, f.owner.ID, ChartDay)
	require.NoError(t, err)
	assert.Equal(t, 1, f.orders.pointsHits)
	assert.True(t, f.orders.since.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)), f.orders.since.String())

	_, err = f.svc.Chart(ctx, f.owner.ID, "bogus")
	require.NoError(t, err)
	assert.Equal(t, 1, f.orders.pointsHits)
}

func TestBuildActivities(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)
	src := &model.ActivitySource{
		NewOrders: []model.Order{
			{OrderID: strPtr("A1"), CustomerName: strPtr("Ravi"), CreatedAt: now.Add(-2 * time.Hour)},
			{OrderID: strPtr("A2"), CreatedAt: now.Add(-30 * time.Second)},
		},
		PaidOrders: []model.Order{
			{OrderID: strPtr("A1"), PaymentAmount: decimal.RequireFromString("20"), UpdatedAt: now.Add(-90 * time.Minute)},
		},
		Completed: []model.Order{
			{OrderID: strPtr("A1"), UpdatedAt: now.Add(-5 * time.Minute)},
		},
		NewCustomers: []model.NewCustomer{
			{Name: "Ravi", FirstOrderAt: now.Add(-2 * time.Hour)},
		},
	}

	feed := BuildActivities(src, now, 20)
	require.Len(t, feed, 5)

	assert.Equal(t, "New order from Unknown Customer", feed[0].Message)
	assert.Equal(t, "Just now", feed[0].Time)
	assert.Equal(t, "Order #A1 delivered", feed[1].Message)
	assert.Equal(t, "5 min ago", feed[1].Time)
	assert.Equal(t, "payment", feed[2].Type)
	assert.Equal(t, "₹20.00", feed[2].Amount)
	assert.Equal(t, "1 hour ago", feed[2].Time)

	// equal timestamps keep insertion order
	assert.Equal(t, "order", feed[3].Type)
	assert.Equal(t, "customer", feed[4].Type)
	assert.Equal(t, "New customer registration: Ravi", feed[4].Message)
	assert.Equal(t, "2 hours ago", feed[4].Time)

	assert.Len(t, BuildActivities(src, now, 2), 2)
	assert.NotNil(t, BuildActivities(&model.ActivitySource{}, now, 4))
}

func TestNormalizeActivityLimit(t *testing.T) {
	assert.Equal(t, 4, NormalizeActivityLimit(0))
	assert.Equal(t, 10, NormalizeActivityLimit(10))
	assert.Equal(t, 20, NormalizeActivityLimit(50))
}

func TestDashboard(t *testing.T) {
	f := newDashboardFixture(t)

	res, err := f.svc.Dashboard(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to your dashboard", res.Message)
	assert.Equal(t, "sana-shop", res.User.UniqueURL)
}
