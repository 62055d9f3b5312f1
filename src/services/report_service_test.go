package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/cachestore"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/gateway"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/processors"
)

const testSchema = `
CREATE TABLE cache_entries (
    namespace   TEXT NOT NULL,
    cache_key   TEXT NOT NULL,
    value       TEXT NOT NULL,
    captured_at INTEGER,
    created_at  INTEGER NOT NULL,
    PRIMARY KEY (namespace, cache_key)
);`

type fakeUpstream struct {
	currencies []models.CurrencyRecord
	quotes     []models.RateQuote
	orders     []models.OrderRecord
	failRates  bool
	failOrders bool
	// bareObject makes the orders handler respond with a single order object
	// instead of a list, the upstream's exactly-one-match shape.
	bareObject bool
	orderCalls int

	// When set, the orders handler announces itself on ordersEntered and
	// waits for releaseOrders before responding.
	ordersEntered chan struct{}
	releaseOrders chan struct{}
}

func (u *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/currencies", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, u.currencies)
	})
	mux.HandleFunc("/api/v3/currency_rates", func(w http.ResponseWriter, r *http.Request) {
		if u.failRates {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeData(w, u.quotes)
	})
	mux.HandleFunc("/api/private/orders_report", func(w http.ResponseWriter, r *http.Request) {
		u.orderCalls++
		if u.ordersEntered != nil {
			u.ordersEntered <- struct{}{}
			<-u.releaseOrders
		}
		if u.failOrders {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if u.bareObject {
			writeData(w, u.orders[0])
			return
		}
		writeData(w, u.orders)
	})
	return mux
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func newTestService(t *testing.T, upstream *fakeUpstream) *reportServiceImpl {
	t.Helper()

	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	client := gateway.NewClient(server.URL, "test-key", 5*time.Second)
	store := cachestore.New(db, "test_ns", 0)
	gw := gateway.New(client, store, 3*time.Hour)

	svc := NewReportService(gw, "EUR", "UAH", []string{"UAH", "USD", "EUR", "KZT"}).(*reportServiceImpl)
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func testUpstream() *fakeUpstream {
	return &fakeUpstream{
		currencies: []models.CurrencyRecord{
			{ID: "1", Code: "EUR"},
			{ID: "2", Code: "USD"},
			{ID: "3", Code: "UAH"},
		},
		quotes: []models.RateQuote{
			{CurrencyFrom: "1", CurrencyTo: "3", ValueFrom: 1, ValueTo: 40},
			{CurrencyFrom: "2", CurrencyTo: "3", ValueFrom: 1, ValueTo: 38},
		},
		orders: []models.OrderRecord{
			{DateStart: "2024-05-05", BalanceCurrency: "EUR", Sell: 100, Buy: 60, NumberOfPax: 2, Status: "CNF"},
			{DateStart: "2024-05-06", BalanceCurrency: "USD", Sell: 200, Buy: 100, NumberOfPax: 3, Status: "CNF"},
		},
	}
}

func TestRun_FullPipeline(t *testing.T) {
	svc := newTestService(t, testUpstream())

	result, err := svc.Run(context.Background(), ReportParams{
		Mode:    processors.ModeDateStart,
		Period:  "week",
		GroupBy: processors.GroupDay,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-05-04", result.DateFrom)
	assert.Equal(t, "2024-05-10", result.DateTo)

	// USD converts through the UAH cross-rate: 38/40 = 0.95.
	assert.InDelta(t, 100+200*0.95, result.Totals.Sales, 1e-9)
	assert.InDelta(t, 60+100*0.95, result.Totals.Cost, 1e-9)
	assert.Equal(t, 5.0, result.Totals.Pax)
	assert.Equal(t, 2, result.Totals.Orders)

	require.Len(t, result.Series, 2)
	assert.Equal(t, "2024-05-05", result.Series[0].PeriodKey)

	assert.False(t, result.Rates.Degraded)
	require.NotNil(t, result.Rates.Rates["USD"])
	assert.InDelta(t, 0.95, *result.Rates.Rates["USD"], 1e-9)
	assert.Nil(t, result.Rates.Rates["KZT"], "unresolved rate must surface as null")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "KZT")
}

func TestRun_DegradesToIdentityMapWhenRatesFail(t *testing.T) {
	upstream := testUpstream()
	upstream.failRates = true
	svc := newTestService(t, upstream)

	result, err := svc.Run(context.Background(), ReportParams{
		Mode:   processors.ModeDateStart,
		Period: "week",
	})
	require.NoError(t, err, "reference-data failures must not abort the run")

	assert.True(t, result.Rates.Degraded)
	// USD amounts pass through unconverted under the identity map.
	assert.InDelta(t, 300.0, result.Totals.Sales, 1e-9)
	assert.Nil(t, result.Rates.Rates["USD"])
	require.NotNil(t, result.Rates.Rates["EUR"])
	assert.Equal(t, 1.0, *result.Rates.Rates["EUR"])
}

func TestRun_OrdersFailureIsTerminal(t *testing.T) {
	upstream := testUpstream()
	upstream.failOrders = true
	svc := newTestService(t, upstream)

	_, err := svc.Run(context.Background(), ReportParams{
		Mode:   processors.ModeDateStart,
		Period: "week",
	})

	var transportErr *gateway.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusBadGateway, transportErr.Status)
}

func TestRun_DateCreatedModeDropsCancelled(t *testing.T) {
	upstream := testUpstream()
	upstream.orders = []models.OrderRecord{
		{CreatedDate: "2024-05-05", BalanceCurrency: "EUR", Sell: 100, NumberOfPax: 1, Status: "NEW"},
		{CreatedDate: "2024-05-05", BalanceCurrency: "EUR", Sell: 999, NumberOfPax: 1, Status: "CNX"},
	}
	svc := newTestService(t, upstream)

	result, err := svc.Run(context.Background(), ReportParams{
		Mode:   processors.ModeDateCreated,
		Period: "week",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Totals.Orders)
	assert.InDelta(t, 100.0, result.Totals.Sales, 1e-9)
}

func TestRun_SingleOrderReportHasTotalsOnly(t *testing.T) {
	upstream := testUpstream()
	upstream.bareObject = true
	svc := newTestService(t, upstream)

	result, err := svc.Run(context.Background(), ReportParams{
		Mode:   processors.ModeDateStart,
		Period: "week",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Totals.Orders)
	assert.InDelta(t, 100.0, result.Totals.Sales, 1e-9)
	assert.Empty(t, result.Series, "an exactly-one-match report carries no period series")
}

func TestRegroup_ReusesLastRunWithoutFetching(t *testing.T) {
	upstream := testUpstream()
	svc := newTestService(t, upstream)

	_, err := svc.Run(context.Background(), ReportParams{
		Mode:   processors.ModeDateStart,
		Period: "week",
	})
	require.NoError(t, err)
	fetchesAfterRun := upstream.orderCalls

	regrouped, err := svc.Regroup(processors.GroupMonth)
	require.NoError(t, err)

	require.Len(t, regrouped.Series, 1)
	assert.Equal(t, "2024-05", regrouped.Series[0].PeriodKey)
	assert.Equal(t, "month", regrouped.GroupBy)
	assert.Equal(t, fetchesAfterRun, upstream.orderCalls, "regrouping must not re-fetch")

	// Regrouping back to day restores the original series.
	daily, err := svc.Regroup(processors.GroupDay)
	require.NoError(t, err)
	assert.Len(t, daily.Series, 2)
}

func TestRegroup_WithoutRun(t *testing.T) {
	svc := newTestService(t, testUpstream())

	_, err := svc.Regroup(processors.GroupMonth)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestRun_StaleRunIsDiscarded(t *testing.T) {
	upstream := testUpstream()
	upstream.ordersEntered = make(chan struct{}, 1)
	upstream.releaseOrders = make(chan struct{})
	svc := newTestService(t, upstream)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), ReportParams{
			Mode:   processors.ModeDateStart,
			Period: "week",
		})
		done <- err
	}()

	// While the first run is blocked on the orders fetch, a newer run
	// starts; the first run's result must be discarded, not published.
	<-upstream.ordersEntered
	svc.runSeq.Add(1)
	close(upstream.releaseOrders)

	err := <-done
	assert.ErrorIs(t, err, ErrSuperseded)

	svc.mu.Lock()
	assert.Nil(t, svc.last, "a stale run must not overwrite newer state")
	svc.mu.Unlock()
}
