// Package utils contains small formatting helpers shared by the dashboard
// services.
package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RupeeSymbol prefixes every formatted amount.
const RupeeSymbol = "₹"

// FormatRupees renders an amount as "₹1234.50".
func FormatRupees(amount decimal.Decimal) string {
	return RupeeSymbol + amount.StringFixed(2)
}

// TimeAgo renders how long before now t was, in the coarse units the
// activity feed uses.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	default:
		return plural(int(diff.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// PercentChange is (today-yesterday)/yesterday*100 rounded to two places,
// 100 when yesterday was zero and today was not, else 0.
func PercentChange(today, yesterday decimal.Decimal) decimal.Decimal {
	if yesterday.IsZero() {
		if today.IsPositive() {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return today.Sub(yesterday).Div(yesterday).Mul(decimal.NewFromInt(100)).Round(2)
}
