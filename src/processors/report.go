package processors

import (
	"fmt"
	"sort"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
)

// DateField selects which order field counts as "the" date of an order.
type DateField string

const (
	// DateFieldStart groups orders by travel start date.
	DateFieldStart DateField = "date_start"
	// DateFieldCreated groups orders by record-creation date.
	DateFieldCreated DateField = "created_at"
)

func (f DateField) resolve(o models.OrderRecord) string {
	if f == DateFieldStart {
		return o.DateStart
	}
	return o.CreatedDay()
}

type runningSums struct {
	pax    float64
	sales  float64
	cost   float64
	orders int
}

// Aggregate converts every order into the target currency and accumulates
// grand totals plus a per-day series keyed by the raw date string. Amounts
// in currencies without a resolved rate are summed unconverted and reported
// once per currency as a warning. A single-order report (the upstream's
// bare-object shape) contributes to the totals only; its per-day series
// stays empty.
func Aggregate(data models.OrdersData, rates models.RateMap, target string, field DateField) (models.AggregatedReport, []string) {
	var totals runningSums
	byDate := make(map[string]*runningSums)
	missingRates := make(map[string]bool)

	for _, o := range data.Records {
		currency := o.BalanceCurrency
		if currency == "" {
			currency = target
		}

		sales, ok := Convert(float64(o.Sell), currency, target, rates)
		if !ok {
			missingRates[currency] = true
		}
		cost, ok := Convert(float64(o.Buy), currency, target, rates)
		if !ok {
			missingRates[currency] = true
		}
		pax := float64(o.NumberOfPax)

		totals.pax += pax
		totals.sales += sales
		totals.cost += cost
		totals.orders++

		if data.Single {
			continue
		}
		if date := field.resolve(o); date != "" {
			bucket := byDate[date]
			if bucket == nil {
				bucket = &runningSums{}
				byDate[date] = bucket
			}
			bucket.pax += pax
			bucket.sales += sales
			bucket.cost += cost
			bucket.orders++
		}
	}

	var warnings []string
	for currency := range missingRates {
		logger.L.Warn("Amounts passed through unconverted, no rate for currency", "currency", currency)
		warnings = append(warnings, fmt.Sprintf("amounts in %s passed through unconverted", currency))
	}
	sort.Strings(warnings)

	days := make([]models.PeriodBucket, 0, len(byDate))
	for date, sums := range byDate {
		days = append(days, finalizeBucket(date, *sums))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].PeriodKey < days[j].PeriodKey })

	report := models.AggregatedReport{
		Totals: models.ReportTotals{
			Pax:          totals.pax,
			Sales:        totals.sales,
			Cost:         totals.cost,
			Profit:       totals.sales - totals.cost,
			ProfitPerPax: profitPerPax(totals),
			Orders:       totals.orders,
		},
		ByDay: days,
	}
	return report, warnings
}

func finalizeBucket(key string, sums runningSums) models.PeriodBucket {
	return models.PeriodBucket{
		PeriodKey:    key,
		Pax:          sums.pax,
		Sales:        sums.sales,
		Cost:         sums.cost,
		Profit:       sums.sales - sums.cost,
		ProfitPerPax: profitPerPax(sums),
		Orders:       sums.orders,
	}
}

func profitPerPax(sums runningSums) float64 {
	if sums.pax <= 0 {
		return 0
	}
	return (sums.sales - sums.cost) / sums.pax
}
