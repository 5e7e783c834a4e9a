package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/lib/utils"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Activity feed sizes.
const (
	DefaultActivityLimit = 4
	MaxActivityLimit     = 20
	activityWindow       = 24 * time.Hour
)

// Chart ranges.
const (
	ChartDay     = "day"
	ChartWeek    = "week"
	ChartMonth   = "month"
	ChartOverall = "overall"
)

type Metric struct {
	Today         float64 `json:"today"`
	Yesterday     float64 `json:"yesterday"`
	PercentChange float64 `json:"percent_change"`
	Overall       float64 `json:"overall"`
}

type DashboardStats struct {
	Orders       Metric `json:"orders"`
	Revenue      Metric `json:"revenue"`
	Customers    Metric `json:"customers"`
	PrintedPages Metric `json:"printed_pages"`
}

type OverviewEntry struct {
	UniqueURL      string         `json:"unique_url"`
	DashboardStats DashboardStats `json:"dashboard_stats"`
}

type Overview struct {
	OrderOverview []OverviewEntry `json:"OrderOverview"`
}

type DashboardUser struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	UniqueURL string `json:"unique_url"`
}

type DashboardResponse struct {
	Message string        `json:"message"`
	User    DashboardUser `json:"user"`
}

// FormattedOrder is an order as the dashboard tables render it.
type FormattedOrder struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	Date          string            `json:"date"`
	Amount        string            `json:"amount"`
	Status        string            `json:"status"`
	FileURL       map[string]string `json:"file_url"`
	FilePath      map[string]string `json:"file_path"`
	PaperSize     string            `json:"paper_size"`
	PaperType     string            `json:"paper_type"`
	PrintColor    string            `json:"print_color"`
	PrintSide     string            `json:"print_side"`
	Binding       string            `json:"binding"`
	NoOfCopies    int               `json:"no_of_copies"`
	NoOfPages     int               `json:"no_of_pages"`
	TransactionID *string           `json:"transaction_id"`
	PaymentStatus bool              `json:"payment_status"`
	PaymentMethod string            `json:"payment_method"`
}

// RecentOrders is the cached recent-orders payload. LastModified doubles as
// the entity tag.
type RecentOrders struct {
	Orders       []FormattedOrder `json:"orders"`
	LastModified string           `json:"last_modified"`
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Tension         float64   `json:"tension"`
}

type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Activity struct {
	ID           int     `json:"id"`
	Type         string  `json:"type"`
	Message      string  `json:"message"`
	Time         string  `json:"time"`
	Timestamp    string  `json:"timestamp"`
	OrderID      *string `json:"order_id,omitempty"`
	Amount       string  `json:"amount,omitempty"`
	CustomerName string  `json:"customer_name,omitempty"`

	at time.Time
}

type Activities struct {
	Activities []Activity `json:"activities"`
}

type DashboardService struct {
	server *server.Server
	owners OwnerStore
	orders OrderStore
	now    func() time.Time
}

func NewDashboardService(s *server.Server, owners OwnerStore, orders OrderStore) *DashboardService {
	return &DashboardService{
		server: s,
		owners: owners,
		orders: orders,
		now:    time.Now,
	}
}

func (d *DashboardService) localNow() time.Time {
	return d.now().In(d.server.Config.Location())
}

// Dashboard greets the owner.
func (d *DashboardService) Dashboard(ctx context.Context, ownerID uuid.UUID) (*DashboardResponse, error) {
	owner, err := d.owners.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &DashboardResponse{
		Message: "Welcome to your dashboard",
		User: DashboardUser{
			Username:  owner.Username,
			Email:     owner.Email,
			UniqueURL: owner.UniqueURL,
		},
	}, nil
}

func metric(today, yesterday, overall decimal.Decimal) Metric {
	return Metric{
		Today:         today.InexactFloat64(),
		Yesterday:     yesterday.InexactFloat64(),
		PercentChange: utils.PercentChange(today, yesterday).InexactFloat64(),
		Overall:       overall.InexactFloat64(),
	}
}

func countMetric(today, yesterday, overall int64) Metric {
	return metric(decimal.NewFromInt(today), decimal.NewFromInt(yesterday), decimal.NewFromInt(overall))
}

// BuildStats turns raw totals into the four dashboard metrics. Revenue is
// rounded to paise.
func BuildStats(t *model.StatsTotals) DashboardStats {
	return DashboardStats{
		Orders: countMetric(t.Today.Orders, t.Yesterday.Orders, t.Overall.Orders),
		Revenue: metric(
			t.Today.Revenue.Round(2),
			t.Yesterday.Revenue.Round(2),
			t.Overall.Revenue.Round(2),
		),
		Customers:    countMetric(t.Today.Customers, t.Yesterday.Customers, t.Overall.Customers),
		PrintedPages: countMetric(t.Today.PrintedPages, t.Yesterday.PrintedPages, t.Overall.PrintedPages),
	}
}

// StatsWindow bounds today and yesterday around now, in now's location.
func StatsWindow(now time.Time) model.StatsWindow {
	today := startOfDay(now)
	return model.StatsWindow{
		YesterdayStart: today.AddDate(0, 0, -1),
		TodayStart:     today,
		TomorrowStart:  today.AddDate(0, 0, 1),
	}
}

// Stats computes a shop's statistics, cached per calendar day.
func (d *DashboardService) Stats(ctx context.Context, uniqueURL string) (DashboardStats, error) {
	now := d.localNow()
	key := cache.DashboardStatsKey(uniqueURL, now)

	return cache.Remember(ctx, d.server.Cache, key, cache.TTLDashboardStats, func(ctx context.Context) (DashboardStats, error) {
		totals, err := d.orders.Totals(ctx, uniqueURL, StatsWindow(now))
		if err != nil {
			return DashboardStats{}, err
		}
		return BuildStats(totals), nil
	})
}

// Overview wraps the owner's statistics in the overview envelope.
func (d *DashboardService) Overview(ctx context.Context, ownerID uuid.UUID) (*Overview, error) {
	key := cache.OwnerKey(ownerID, cache.EndpointOrdersOverview)

	return cache.Remember(ctx, d.server.Cache, key, cache.TTLOrders, func(ctx context.Context) (*Overview, error) {
		owner, err := d.owners.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		stats, err := d.Stats(ctx, owner.UniqueURL)
		if err != nil {
			return nil, err
		}

		return &Overview{
			OrderOverview: []OverviewEntry{{UniqueURL: owner.UniqueURL, DashboardStats: stats}},
		}, nil
	})
}

// FormatOrder renders o for the dashboard, with dates in loc.
func FormatOrder(o model.Order, loc *time.Location) FormattedOrder {
	id := o.ClientOrderID()
	if id == "" {
		id = "Order-" + o.ID.String()
	}

	return FormattedOrder{
		ID:            id,
		Customer:      orFallback(o.Customer(), "Unknown Customer"),
		Date:          o.CreatedAt.In(loc).Format("Jan 02, 2006"),
		Amount:        utils.FormatRupees(o.PaymentAmount),
		Status:        orFallback(o.PrintStatus, model.PrintStatusPending),
		FileURL:       o.FileURLs,
		FilePath:      o.FileURLs,
		PaperSize:     o.PaperSize,
		PaperType:     o.PaperType,
		PrintColor:    o.PrintColor,
		PrintSide:     o.PrintSide,
		Binding:       o.Binding,
		NoOfCopies:    o.NumberOfCopies,
		NoOfPages:     o.NoOfPages,
		TransactionID: o.TransactionID,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
	}
}

// LastModified is the newest updated_at among the owner's orders. An owner
// without orders gets the current time, so the tag never matches.
func (d *DashboardService) LastModified(ctx context.Context, ownerID uuid.UUID) (string, error) {
	last, ok, err := d.orders.LastUpdatedAt(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if !ok {
		last = d.now()
	}
	return last.UTC().Format(time.RFC3339Nano), nil
}

// RecentOrders returns every order of the owner, newest first. A cached
// copy is served only while it was built for lastModified.
func (d *DashboardService) RecentOrders(ctx context.Context, ownerID uuid.UUID, lastModified string) (*RecentOrders, error) {
	key := cache.OwnerKey(ownerID, cache.EndpointRecentOrders)

	var cached RecentOrders
	if found, err := d.server.Cache.Get(ctx, key, &cached); err == nil && found && cached.LastModified == lastModified {
		return &cached, nil
	}

	orders, err := d.orders.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	loc := d.server.Config.Location()
	result := &RecentOrders{
		Orders:       make([]FormattedOrder, 0, len(orders)),
		LastModified: lastModified,
	}
	for _, o := range orders {
		result.Orders = append(result.Orders, FormatOrder(o, loc))
	}

	if err := d.server.Cache.Set(ctx, key, result, cache.TTLRecentOrders); err != nil {
		d.server.Logger.Warn().Err(err).Str("key", key).Msg("failed to cache recent orders")
	}
	return result, nil
}

func chartSince(filter string, now time.Time) (time.Time, bool) {
	today := startOfDay(now)
	switch filter {
	case ChartDay:
		return today.AddDate(0, 0, -6), true
	case ChartWeek:
		return mondayOf(today).AddDate(0, 0, -21), true
	case ChartMonth:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), true
	case ChartOverall:
		return time.Time{}, true
	}
	return time.Time{}, false
}

func mondayOf(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

type bucket struct {
	label   string
	revenue decimal.Decimal
	orders  int
}

func newChart(buckets []bucket) Chart {
	labels := make([]string, 0, len(buckets))
	revenue := make([]float64, 0, len(buckets))
	orders := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, b.label)
		revenue = append(revenue, b.revenue.Round(2).InexactFloat64())
		orders = append(orders, float64(b.orders))
	}

	return Chart{
		Labels: labels,
		Datasets: []Dataset{
			{
				Label:           "Revenue",
				Data:            revenue,
				BorderColor:     "#0a2463",
				BackgroundColor: "rgba(10, 36, 99, 0.1)",
				Tension:         0.4,
			},
			{
				Label:           "Orders",
				Data:            orders,
				BorderColor:     "#2176ff",
				BackgroundColor: "rgba(33, 118, 255, 0.1)",
				Tension:         0.4,
			},
		},
	}
}

// BuildChart buckets points for filter relative to now. Points are read in
// now's location. An unknown filter yields an empty chart.
func BuildChart(filter string, points []model.OrderPoint, now time.Time) Chart {
	loc := now.Location()
	today := startOfDay(now)

	// ranged buckets are [start, next start)
	var (
		buckets []bucket
		starts  []time.Time
	)

	switch filter {
	case ChartDay:
		for i := 6; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			starts = append(starts, day)
			buckets = append(buckets, bucket{label: day.Format("02 Jan")})
		}
		starts = append(starts, today.AddDate(0, 0, 1))

	case ChartWeek:
		monday := mondayOf(today)
		for i := 3; i >= 0; i-- {
			start := monday.AddDate(0, 0, -7*i)
			end := start.AddDate(0, 0, 6)
			starts = append(starts, start)
			buckets = append(buckets, bucket{label: start.Format("02 Jan") + " - " + end.Format("02 Jan")})
		}
		starts = append(starts, monday.AddDate(0, 0, 7))

	case ChartMonth:
		for m := time.January; m <= time.December; m++ {
			start := time.Date(now.Year(), m, 1, 0, 0, 0, 0, loc)
			starts = append(starts, start)
			buckets = append(buckets, bucket{label: start.Format("Jan")})
		}
		starts = append(starts, time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, loc))

	case ChartOverall:
		return newChart(overallBuckets(points, loc))

	default:
		return newChart(nil)
	}

	for _, p := range points {
		at := p.CreatedAt.In(loc)
		i := sort.Search(len(starts), func(i int) bool { return starts[i].After(at) }) - 1
		if i < 0 || i >= len(buckets) {
			continue
		}
		buckets[i].revenue = buckets[i].revenue.Add(p.PaymentAmount)
		buckets[i].orders++
	}

	return newChart(buckets)
}

func overallBuckets(points []model.OrderPoint, loc *time.Location) []bucket {
	byMonth := map[string]*bucket{}
	var keys []string

	for _, p := range points {
		at := p.CreatedAt.In(loc)
		key := at.Format("2006-01")
		b, ok := byMonth[key]
		if !ok {
			b = &bucket{label: at.Format("Jan 2006")}
			byMonth[key] = b
			keys = append(keys, key)
		}
		b.revenue = b.revenue.Add(p.PaymentAmount)
		b.orders++
	}

	slices.Sort(keys)
	buckets := make([]bucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, *byMonth[k])
	}
	return buckets
}

// Chart returns the owner's chart for filter. Known filters are cached.
func (d *DashboardService) Chart(ctx context.Context, ownerID uuid.UUID, filter string) (Chart, error) {
	now := d.localNow()
	since, known := chartSince(filter, now)
	if !known {
		return BuildChart(filter, nil, now), nil
	}

	key := cache.OwnerKey(ownerID, cache.ChartEndpoint(filter))
	return cache.Remember(ctx, d.server.Cache, key, cache.TTLChart, func(ctx context.Context) (Chart, error) {
		owner, err := d.owners.GetByID(ctx, ownerID)
		if err != nil {
			return Chart{}, err
		}

		points, err := d.orders.Points(ctx, owner.UniqueURL, since)
		if err != nil {
			return Chart{}, err
		}
		return BuildChart(filter, points, now), nil
	})
}

// NormalizeActivityLimit applies the default and the cap.
func NormalizeActivityLimit(limit int) int {
	if limit <= 0 {
		return DefaultActivityLimit
	}
	return min(limit, MaxActivityLimit)
}

// BuildActivities merges the activity rows into one feed, newest first,
// cut to limit.
func BuildActivities(src *model.ActivitySource, now time.Time, limit int) []Activity {
	loc := now.Location()
	var feed []Activity

	add := func(a Activity) {
		a.ID = len(feed) + 1
		a.Time = utils.TimeAgo(a.at, now)
		a.Timestamp = a.at.In(loc).Format(time.RFC3339Nano)
		feed = append(feed, a)
	}

	for _, o := range src.NewOrders {
		add(Activity{
			Type:    "order",
			Message: "New order from " + orFallback(o.Customer(), "Unknown Customer"),
			OrderID: o.OrderID,
			at:      o.CreatedAt,
		})
	}

	for _, o := range src.PaidOrders {
		add(Activity{
			Type:    "payment",
			Message: fmt.Sprintf("Payment received for Order #%s", o.ClientOrderID()),
			OrderID: o.OrderID,
			Amount:  utils.FormatRupees(o.PaymentAmount),
			at:      o.UpdatedAt,
		})
	}

	for _, o := range src.Completed {
		add(Activity{
			Type:    "delivery",
			Message: fmt.Sprintf("Order #%s delivered", o.ClientOrderID()),
			OrderID: o.OrderID,
			at:      o.UpdatedAt,
		})
	}

	for _, c := range src.NewCustomers {
		add(Activity{
			Type:         "customer",
			Message:      "New customer registration: " + c.Name,
			CustomerName: c.Name,
			at:           c.FirstOrderAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].at.After(feed[j].at) })

	if len(feed) > limit {
		feed = feed[:limit]
	}
	if feed == nil {
		feed = []Activity{}
	}
	return feed
}

// Activities returns the owner's last-24h activity feed.
func (d *DashboardService) Activities(ctx context.Context, ownerID uuid.UUID, limit int) (*Activities, error) {
	limit = NormalizeActivityLimit(limit)

	load := func(ctx context.Context) (*Activities, error) {
		now := d.localNow()
		src, err := d.orders.ActivitySince(ctx, ownerID, now.Add(-activityWindow))
		if err != nil {
			return nil, err
		}
		return &Activities{Activities: BuildActivities(src, now, limit)}, nil
	}

	// Only the limits the dashboard uses are invalidated, so only those are
	// cached.
	if !slices.Contains(cache.ActivityLimits, limit) {
		return load(ctx)
	}

	key := cache.OwnerKey(ownerID, cache.ActivityEndpoint(limit))
	return cache.Remember(ctx, d.server.Cache, key, cache.TTLActivity, load)
}
