// Package cache is the short-lived read-through cache in front of the
// dashboard endpoints.
//
// Values are stored as JSON. Redis backs the cache in every deployed
// environment; the in-memory Store exists for tests and for running
// without Redis.
//
// Keys come in two shapes:
//
//	owner_{owner id}_{endpoint}            per-owner endpoint payloads
//	dashboard_stats_{unique url}_{day}     statistics for one calendar day
//
// Any order mutation calls InvalidateOwner, which removes every key the
// dashboard could have filled for that owner.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a key/value cache with per-entry expiry.
type Store interface {
	// Get decodes the value at key into dest. found is false on a miss.
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TTLs per endpoint.
const (
	TTLOrders         = 30 * time.Second
	TTLRecentOrders   = 30 * time.Second
	TTLChart          = 60 * time.Second
	TTLActivity       = 30 * time.Second
	TTLDashboardStats = 300 * time.Second
)

// Endpoint suffixes for OwnerKey.
const (
	EndpointOrdersOverview = "orders_overview"
	EndpointRecentOrders   = "recent_orders"
)

// ActivityLimits are the feed sizes the dashboard asks for. Only these are
// cached, so only these need invalidating.
var ActivityLimits = []int{4, 10, 20}

// ChartFilters are the chart ranges the dashboard can request.
var ChartFilters = []string{"day", "week", "month", "overall"}

func OwnerKey(ownerID uuid.UUID, endpoint string) string {
	return fmt.Sprintf("owner_%s_%s", ownerID, endpoint)
}

func ActivityEndpoint(limit int) string {
	return fmt.Sprintf("activity_%d", limit)
}

func ChartEndpoint(filter string) string {
	return "chart_" + filter
}

// DashboardStatsKey names the statistics entry for uniqueURL on day, which
// must already be in the shop's timezone.
func DashboardStatsKey(uniqueURL string, day time.Time) string {
	return fmt.Sprintf("dashboard_stats_%s_%s", uniqueURL, day.Format("2006-01-02"))
}

// OwnerKeys lists every key InvalidateOwner removes.
func OwnerKeys(ownerID uuid.UUID, uniqueURL string, today time.Time) []string {
	keys := []string{
		OwnerKey(ownerID, EndpointRecentOrders),
		OwnerKey(ownerID, EndpointOrdersOverview),
	}
	for _, limit := range ActivityLimits {
		keys = append(keys, OwnerKey(ownerID, ActivityEndpoint(limit)))
	}
	for _, filter := range ChartFilters {
		keys = append(keys, OwnerKey(ownerID, ChartEndpoint(filter)))
	}
	return append(keys, DashboardStatsKey(uniqueURL, today))
}

// InvalidateOwner drops everything cached for one owner's dashboard.
func InvalidateOwner(ctx context.Context, store Store, ownerID uuid.UUID, uniqueURL string, today time.Time) error {
	return store.Delete(ctx, OwnerKeys(ownerID, uniqueURL, today)...)
}

// Remember returns the cached value at key, or calls load, caches its
// result for ttl and returns it. A failing cache never fails the request;
// cache errors fall through to load.
func Remember[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if found, err := store.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	_ = store.Set(ctx, key, value, ttl)
	return value, nil
}
