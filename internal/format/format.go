// Package format renders prices, volumes, percentages and ages for display.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Price picks precision by magnitude so sub-cent tokens stay readable.
func Price(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1:
		return "$" + humanize.FormatFloat("#,###.##", v)
	case abs >= 0.01:
		return fmt.Sprintf("$%.4f", v)
	case abs >= 0.0001:
		return fmt.Sprintf("$%.6f", v)
	case v == 0:
		return "$0.00"
	default:
		return fmt.Sprintf("$%.2e", v)
	}
}

// Number abbreviates large values with K, M or B suffixes.
func Number(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// Money is Number with a dollar sign.
func Money(v float64) string {
	if v < 0 {
		return "-$" + Number(-v)
	}
	return "$" + Number(v)
}

// Count renders an integer with thousands separators.
func Count(n int64) string {
	return humanize.Comma(n)
}

// Percent always carries an explicit sign.
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// TimeAgo renders the age of t relative to now in the largest whole unit.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
