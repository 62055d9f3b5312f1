package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/gateway"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/processors"
)

type reportServiceImpl struct {
	gateway *gateway.Gateway

	targetCurrency      string
	anchorCurrency      string
	supportedCurrencies []string

	// runSeq tags every run; only the newest run may publish its result.
	runSeq atomic.Uint64

	mu   sync.Mutex
	last *models.ReportResult

	now func() time.Time
}

func NewReportService(gw *gateway.Gateway, target, anchor string, supported []string) ReportService {
	return &reportServiceImpl{
		gateway:             gw,
		targetCurrency:      target,
		anchorCurrency:      anchor,
		supportedCurrencies: supported,
		now:                 time.Now,
	}
}

func (s *reportServiceImpl) Run(ctx context.Context, params ReportParams) (*models.ReportResult, error) {
	runID := s.runSeq.Add(1)
	log := logger.FromContext(ctx).With("runID", runID)

	settings, err := processors.Settings(params.Mode)
	if err != nil {
		return nil, err
	}
	dateFrom, dateTo, err := processors.DateRange(params.Period, params.CustomFrom, params.CustomTo, s.now())
	if err != nil {
		return nil, err
	}
	groupBy := params.GroupBy
	if groupBy == "" {
		groupBy = processors.GroupDay
	}

	log.Info("Report run starting", "mode", params.Mode, "dateFrom", dateFrom, "dateTo", dateTo, "groupBy", groupBy)

	// Step 1/3: currency dictionary. A failure here only widens the rate
	// gaps, so the run continues.
	var currencies []models.CurrencyRecord
	if currencies, err = s.gateway.FetchCurrencies(ctx); err != nil {
		log.Warn("Currency dictionary fetch failed, continuing without it", "error", err)
		currencies = nil
	}

	// Step 2/3: today's quotes. On failure the run degrades to an identity
	// map: only target-currency amounts convert, the rest pass through.
	ratesDate := s.now().Format("2006-01-02")
	rates := models.RateMap{s.targetCurrency: 1}
	var rateWarnings []string
	degraded := false
	if quotes, err := s.gateway.FetchCurrencyRates(ctx, ratesDate); err != nil {
		log.Warn("Currency rates fetch failed, using identity rate map", "date", ratesDate, "error", err)
		degraded = true
	} else {
		rates, rateWarnings = processors.BuildRateMap(currencies, quotes, s.targetCurrency, s.anchorCurrency, s.supportedCurrencies)
	}

	// Step 3/3: orders. This failure is the run's terminal failure.
	query := gateway.OrdersQuery{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		SortBy:   settings.SortBy,
		Status:   settings.Status,
	}
	ordersData, fetchWarnings, err := s.gateway.FetchOrdersReport(ctx, query, func(page, loaded, pageSize int, fromCache bool) {
		log.Info("Orders progress", "page", page, "loaded", loaded, "pageSize", pageSize, "fromCache", fromCache)
	})
	if err != nil {
		return nil, fmt.Errorf("orders report fetch failed: %w", err)
	}

	if settings.ExcludeStatus != "" {
		ordersData.Records = filterByStatus(ordersData.Records, settings.ExcludeStatus)
	}

	aggregated, convertWarnings := processors.Aggregate(ordersData, rates, s.targetCurrency, settings.Field)

	result := &models.ReportResult{
		RunID:    runID,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		GroupBy:  string(groupBy),
		Totals:   aggregated.Totals,
		ByDay:    aggregated.ByDay,
		Series:   processors.Regroup(aggregated.ByDay, groupBy),
		Rates:    s.ratesInfo(ratesDate, rates, degraded),
		Warnings: mergeWarnings(rateWarnings, fetchWarnings, convertWarnings),
	}

	// Publish only if no newer run has started meanwhile; a stale run must
	// not overwrite a newer run's visible state.
	s.mu.Lock()
	defer s.mu.Unlock()
	if runID != s.runSeq.Load() {
		log.Info("Report run superseded, discarding result", "currentRun", s.runSeq.Load())
		return nil, ErrSuperseded
	}
	s.last = result
	log.Info("Report run completed", "orders", result.Totals.Orders, "days", len(result.ByDay), "warnings", len(result.Warnings))
	return result, nil
}

func (s *reportServiceImpl) Regroup(groupBy processors.Granularity) (*models.ReportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, ErrNoReport
	}

	regrouped := *s.last
	regrouped.GroupBy = string(groupBy)
	regrouped.Series = processors.Regroup(s.last.ByDay, groupBy)
	s.last = &regrouped
	return &regrouped, nil
}

func (s *reportServiceImpl) OrderInfo(ctx context.Context, orderID string) (json.RawMessage, error) {
	return s.gateway.FetchOrderInfo(ctx, orderID)
}

func (s *reportServiceImpl) ratesInfo(date string, rates models.RateMap, degraded bool) models.RatesInfo {
	info := models.RatesInfo{
		Date:     date,
		Rates:    make(map[string]*float64, len(s.supportedCurrencies)),
		Degraded: degraded,
	}
	for _, code := range s.supportedCurrencies {
		if rate, ok := rates[code]; ok {
			r := rate
			info.Rates[code] = &r
		} else {
			info.Rates[code] = nil
		}
	}
	return info
}

func filterByStatus(orders []models.OrderRecord, exclude string) []models.OrderRecord {
	kept := make([]models.OrderRecord, 0, len(orders))
	for _, o := range orders {
		if strings.EqualFold(o.Status, exclude) {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

func mergeWarnings(groups ...[]string) []string {
	var merged []string
	for _, g := range groups {
		merged = append(merged, g...)
	}
	return merged
}
