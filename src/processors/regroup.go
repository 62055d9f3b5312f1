package processors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
)

// Granularity is the time-bucket size of a regrouped series.
type Granularity string

const (
	GroupDay     Granularity = "day"
	GroupMonth   Granularity = "month"
	GroupQuarter Granularity = "quarter"
	GroupYear    Granularity = "year"
)

// ParseGranularity validates a user-supplied grouping value. Empty defaults
// to day.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(s)) {
	case "":
		return GroupDay, nil
	case GroupDay, GroupMonth, GroupQuarter, GroupYear:
		return Granularity(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// GroupKey derives the period key of a YYYY-MM-DD date at granularity g.
// All key formats sort lexicographically in time order.
func GroupKey(date string, g Granularity) string {
	if date == "" {
		return "unknown"
	}
	parts := strings.SplitN(date, "-", 3)
	switch g {
	case GroupMonth:
		if len(parts) >= 2 {
			return parts[0] + "-" + parts[1]
		}
	case GroupQuarter:
		if len(parts) >= 2 {
			month, err := strconv.Atoi(parts[1])
			if err == nil && month >= 1 {
				return fmt.Sprintf("%s-Q%d", parts[0], (month+2)/3)
			}
		}
	case GroupYear:
		return parts[0]
	}
	return date
}

// Regroup re-buckets an already-aggregated day-level series into g. Raw
// fields are summed per key; profit and profit-per-pax are recomputed from
// the sums, never summed across periods. The input is not mutated and
// nothing is re-fetched or re-converted, so regrouping is idempotent for the
// same day-level series.
func Regroup(days []models.PeriodBucket, g Granularity) []models.PeriodBucket {
	grouped := make(map[string]*runningSums)

	for _, day := range days {
		key := GroupKey(day.PeriodKey, g)
		sums := grouped[key]
		if sums == nil {
			sums = &runningSums{}
			grouped[key] = sums
		}
		sums.pax += day.Pax
		sums.sales += day.Sales
		sums.cost += day.Cost
		sums.orders += day.Orders
	}

	buckets := make([]models.PeriodBucket, 0, len(grouped))
	for key, sums := range grouped {
		buckets = append(buckets, finalizeBucket(key, *sums))
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].PeriodKey < buckets[j].PeriodKey })
	return buckets
}
