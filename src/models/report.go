package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CurrencyRecord is one row of the upstream currency dictionary.
type CurrencyRecord struct {
	ID   Identifier `json:"id"`
	Code string     `json:"code"`
}

// RateQuote is a directional exchange quote published by the upstream:
// ValueFrom units of the from-currency equal ValueTo units of the to-currency.
type RateQuote struct {
	CurrencyFrom Identifier  `json:"currency_from"`
	CurrencyTo   Identifier  `json:"currency_to"`
	ValueFrom    FloatString `json:"value_from"`
	ValueTo      FloatString `json:"value_to"`
}

// RateMap maps an uppercase currency code to the multiplier converting one
// unit of it into one unit of the target currency. The target itself always
// maps to 1. A missing entry means no known rate; such amounts pass through
// unconverted.
type RateMap map[string]float64

// OrderRecord is one row of the upstream orders report.
type OrderRecord struct {
	DateStart       string      `json:"date_start"`
	CreatedDate     string      `json:"created_date"`
	CreatedAt       string      `json:"created_at"`
	BalanceCurrency string      `json:"balance_currency"`
	Sell            FloatString `json:"sell"`
	Buy             FloatString `json:"buy"`
	NumberOfPax     FloatString `json:"number_of_pax"`
	Status          string      `json:"status"`
}

// CreatedDay returns the creation date of the order at day granularity,
// preferring the dedicated created_date field over the date part of the
// created_at timestamp.
func (o OrderRecord) CreatedDay() string {
	if o.CreatedDate != "" {
		return o.CreatedDate
	}
	day, _, _ := strings.Cut(o.CreatedAt, " ")
	return day
}

// OrdersData is the decoded data field of an orders response: the record
// list, plus a marker for the upstream's bare-object shape, returned when
// the report matches exactly one order. Single-order reports aggregate into
// totals only, with no per-day series.
type OrdersData struct {
	Records []OrderRecord `json:"records"`
	Single  bool          `json:"single,omitempty"`
}

// UnmarshalOrdersData decodes the data field of an orders response, which is
// a list for the common case but a bare object when the report matches
// exactly one order.
func UnmarshalOrdersData(raw json.RawMessage) (OrdersData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return OrdersData{}, nil
	}
	if raw[0] == '{' {
		var one OrderRecord
		if err := json.Unmarshal(raw, &one); err != nil {
			return OrdersData{}, err
		}
		return OrdersData{Records: []OrderRecord{one}, Single: true}, nil
	}
	var list []OrderRecord
	if err := json.Unmarshal(raw, &list); err != nil {
		return OrdersData{}, err
	}
	return OrdersData{Records: list}, nil
}

// PeriodBucket is the aggregate of one calendar period at some granularity.
// Profit and ProfitPerPax are derived from the other fields and are always
// recomputed after summing, never summed themselves.
type PeriodBucket struct {
	PeriodKey    string  `json:"period"`
	Pax          float64 `json:"pax"`
	Sales        float64 `json:"sales"`
	Cost         float64 `json:"cost"`
	Profit       float64 `json:"profit"`
	ProfitPerPax float64 `json:"profit_per_pax"`
	Orders       int     `json:"orders"`
}

// ReportTotals is the grand aggregate across all orders of a run.
type ReportTotals struct {
	Pax          float64 `json:"pax"`
	Sales        float64 `json:"total_sales"`
	Cost         float64 `json:"total_cost"`
	Profit       float64 `json:"total_profit"`
	ProfitPerPax float64 `json:"profit_per_pax"`
	Orders       int     `json:"orders_count"`
}

// AggregatedReport is the output of the report aggregator: grand totals plus
// the per-day series all coarser groupings are derived from.
type AggregatedReport struct {
	Totals ReportTotals
	ByDay  []PeriodBucket
}

// RatesInfo describes the rate snapshot a report was converted with. Rates
// holds one entry per currency of interest; nil marks an unresolved rate.
// Degraded is set when the reference data could not be fetched and the run
// proceeded with an identity map.
type RatesInfo struct {
	Date     string              `json:"date"`
	Rates    map[string]*float64 `json:"rates"`
	Degraded bool                `json:"degraded,omitempty"`
}

// ReportResult is a completed report run.
type ReportResult struct {
	RunID    uint64         `json:"run_id"`
	DateFrom string         `json:"date_from"`
	DateTo   string         `json:"date_to"`
	GroupBy  string         `json:"group_by"`
	Totals   ReportTotals   `json:"totals"`
	Series   []PeriodBucket `json:"series"`
	ByDay    []PeriodBucket `json:"-"`
	Rates    RatesInfo      `json:"rates_info"`
	Warnings []string       `json:"warnings,omitempty"`
}
