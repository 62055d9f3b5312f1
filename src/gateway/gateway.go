// Package gateway retrieves orders and currency reference data from the GTO
// API. Reads go through the cache store: reference data with a TTL, order
// reports only for closed historical windows, which the upstream treats as
// immutable.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/cachestore"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
)

const (
	ordersPageSize = 1000
	maxOrderPages  = 100
)

// PageLimitWarning is attached to a report when pagination hit the safety
// cap and the accumulated data is partial.
const PageLimitWarning = "order pagination stopped at the 100-page safety cap; results are partial"

// ProgressFunc is invoked after every page transition with the 1-based page
// index, the cumulative record count, the size of this page, and whether the
// data came from cache.
type ProgressFunc func(page, loaded, pageSize int, fromCache bool)

// OrdersQuery identifies one orders_report retrieval. All four fields take
// part in the cache key.
type OrdersQuery struct {
	DateFrom string
	DateTo   string
	SortBy   string
	Status   string
}

type Gateway struct {
	client *Client
	cache  *cachestore.Store
	refTTL time.Duration
	now    func() time.Time
}

func New(client *Client, cache *cachestore.Store, refTTL time.Duration) *Gateway {
	return &Gateway{
		client: client,
		cache:  cache,
		refTTL: refTTL,
		now:    time.Now,
	}
}

// FetchCurrencies returns the currency dictionary, cached with the
// reference-data TTL.
func (g *Gateway) FetchCurrencies(ctx context.Context) ([]models.CurrencyRecord, error) {
	const cacheKey = "currencies"

	if raw, ok := g.cache.Get(cacheKey, g.refTTL); ok {
		var cached []models.CurrencyRecord
		if err := json.Unmarshal(raw, &cached); err == nil {
			logger.FromContext(ctx).Debug("Currencies served from cache", "count", len(cached))
			return cached, nil
		}
	}

	data, err := g.client.getData(ctx, apiGroupV3, "currencies", nil)
	if err != nil {
		return nil, err
	}

	var currencies []models.CurrencyRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &currencies); err != nil {
			return nil, &MalformedResponseError{Operation: "currencies", Preview: bodyPreview(data)}
		}
	}

	g.cache.Put(cacheKey, currencies, true)
	return currencies, nil
}

// FetchCurrencyRates returns the rate quotes published for date
// (YYYY-MM-DD), cached with the reference-data TTL.
func (g *Gateway) FetchCurrencyRates(ctx context.Context, date string) ([]models.RateQuote, error) {
	cacheKey := "currency_rates:" + date

	if raw, ok := g.cache.Get(cacheKey, g.refTTL); ok {
		var cached []models.RateQuote
		if err := json.Unmarshal(raw, &cached); err == nil {
			logger.FromContext(ctx).Debug("Currency rates served from cache", "date", date, "count", len(cached))
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("date", date)
	data, err := g.client.getData(ctx, apiGroupV3, "currency_rates", params)
	if err != nil {
		return nil, err
	}

	var quotes []models.RateQuote
	if len(data) > 0 {
		if err := json.Unmarshal(data, &quotes); err != nil {
			return nil, &MalformedResponseError{Operation: "currency_rates", Preview: bodyPreview(data)}
		}
	}

	g.cache.Put(cacheKey, quotes, true)
	return quotes, nil
}

// FetchOrdersReport retrieves all pages of the orders report for query.
// Pages are requested strictly sequentially; retrieval stops on the first
// short page or after maxOrderPages, in which case the partial result is
// returned together with PageLimitWarning. The bare-object single-order
// shape is preserved on the result, cache writes included. The result is
// cached only when the query's end date lies strictly before today.
func (g *Gateway) FetchOrdersReport(ctx context.Context, query OrdersQuery, progress ProgressFunc) (models.OrdersData, []string, error) {
	log := logger.FromContext(ctx)
	cacheKey := fmt.Sprintf("orders_report:%s:%s:%s:%s", query.DateFrom, query.DateTo, query.SortBy, query.Status)

	// Data touching today is still mutable upstream and must never be
	// served from or written to the cache.
	today := g.now().Format("2006-01-02")
	cacheable := query.DateTo != "" && query.DateTo < today

	if cacheable {
		if raw, ok := g.cache.Get(cacheKey, 0); ok {
			var cached models.OrdersData
			if err := json.Unmarshal(raw, &cached); err == nil {
				log.Info("Orders report served from cache", "dateFrom", query.DateFrom, "dateTo", query.DateTo, "count", len(cached.Records))
				if progress != nil {
					progress(1, len(cached.Records), len(cached.Records), true)
				}
				return cached, nil, nil
			}
		}
	}

	var result models.OrdersData
	var warnings []string

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("date_from", query.DateFrom)
		params.Set("date_to", query.DateTo)
		params.Set("sort_by", query.SortBy)
		params.Set("sort_by_type", "asc")
		params.Set("per_page", strconv.Itoa(ordersPageSize))
		params.Set("page", strconv.Itoa(page))
		params.Set("status", query.Status)

		data, err := g.client.getData(ctx, apiGroupPrivate, "orders_report", params)
		if err != nil {
			return models.OrdersData{}, nil, err
		}

		pageData, err := models.UnmarshalOrdersData(data)
		if err != nil {
			return models.OrdersData{}, nil, &MalformedResponseError{Operation: "orders_report", Preview: bodyPreview(data)}
		}

		// The bare-object shape only ever arrives on the first and only page.
		if page == 1 {
			result.Single = pageData.Single
		}
		result.Records = append(result.Records, pageData.Records...)
		log.Debug("Orders page loaded", "page", page, "pageSize", len(pageData.Records), "loaded", len(result.Records))
		if progress != nil {
			progress(page, len(result.Records), len(pageData.Records), false)
		}

		// A short page is the upstream's end-of-data signal.
		if len(pageData.Records) < ordersPageSize {
			break
		}
		if page >= maxOrderPages {
			log.Warn("Order pagination hit the page cap, returning partial data", "pages", page, "loaded", len(result.Records))
			warnings = append(warnings, PageLimitWarning)
			break
		}
	}

	if cacheable && len(warnings) == 0 {
		g.cache.Put(cacheKey, result, false)
	}
	return result, warnings, nil
}

// FetchOrders is the single-page v3 orders variant. It is not cached.
func (g *Gateway) FetchOrders(ctx context.Context, query OrdersQuery) ([]models.OrderRecord, error) {
	params := url.Values{}
	params.Set("date_from", query.DateFrom)
	params.Set("date_to", query.DateTo)
	params.Set("sort_by", query.SortBy)
	params.Set("sort_by_type", "asc")
	params.Set("per_page", strconv.Itoa(ordersPageSize))
	params.Set("status", query.Status)

	data, err := g.client.getData(ctx, apiGroupV3, "orders", params)
	if err != nil {
		return nil, err
	}
	decoded, err := models.UnmarshalOrdersData(data)
	if err != nil {
		return nil, &MalformedResponseError{Operation: "orders", Preview: bodyPreview(data)}
	}
	return decoded.Records, nil
}

// FetchOrderInfo returns the raw order detail object for orderID.
func (g *Gateway) FetchOrderInfo(ctx context.Context, orderID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("order_id", orderID)
	return g.client.getData(ctx, apiGroupV3, "order_info", params)
}
