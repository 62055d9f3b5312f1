// Package processors holds the reporting pipeline: rate resolution, order
// aggregation, and period regrouping. Everything here is pure computation
// over already-fetched data.
package processors

import (
	"fmt"
	"strings"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
)

// BuildRateMap resolves the published rate quotes into multipliers to the
// target currency. The upstream only publishes pairs against one or two base
// currencies, not a full matrix, so currencies quoted only against the
// anchor are covered by deriving a cross-rate through it.
//
// Currencies of interest that stay unresolved are reported as warnings;
// their amounts later pass through unconverted.
func BuildRateMap(currencies []models.CurrencyRecord, quotes []models.RateQuote, target, anchor string, interest []string) (models.RateMap, []string) {
	idToCode := make(map[string]string, len(currencies))
	for _, c := range currencies {
		id := string(c.ID)
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if id == "" || code == "" {
			continue
		}
		idToCode[id] = code
	}

	rates := models.RateMap{target: 1}
	toAnchor := make(map[string]float64) // units of anchor per 1 unit of key

	for _, q := range quotes {
		from := idToCode[string(q.CurrencyFrom)]
		to := idToCode[string(q.CurrencyTo)]
		if from == "" || to == "" {
			// Quote references a currency the dictionary does not know.
			continue
		}
		valueFrom := float64(q.ValueFrom)
		valueTo := float64(q.ValueTo)
		if from == to || valueFrom <= 0 || valueTo <= 0 {
			continue
		}

		if to == target {
			rates[from] = valueTo / valueFrom
		} else if from == target {
			rates[to] = valueFrom / valueTo
		}

		if to == anchor {
			toAnchor[from] = valueTo / valueFrom
		}
	}

	// Cross-rates: with the target itself quoted in anchor units, any
	// currency quoted against the anchor converts through it.
	if targetToAnchor, ok := toAnchor[target]; ok && targetToAnchor > 0 {
		for _, code := range interest {
			if _, resolved := rates[code]; resolved {
				continue
			}
			if viaAnchor, ok := toAnchor[code]; ok {
				rates[code] = viaAnchor / targetToAnchor
				logger.L.Debug("Cross-rate derived through anchor", "currency", code, "anchor", anchor, "rate", rates[code])
			}
		}
	}

	var warnings []string
	for _, code := range interest {
		if _, ok := rates[code]; !ok {
			logger.L.Warn("No exchange rate resolved for currency", "currency", code, "target", target)
			warnings = append(warnings, fmt.Sprintf("no exchange rate resolved for %s", code))
		}
	}
	return rates, warnings
}

// Convert converts amount from code into the target currency. Zero amounts
// and amounts already in the target pass through untouched. An unknown code
// also passes through unconverted; the false return lets the caller surface
// the gap — the value is never dropped or zeroed.
func Convert(amount float64, code, target string, rates models.RateMap) (float64, bool) {
	if amount == 0 || code == "" {
		return amount, true
	}
	if code == target || strings.ToUpper(code) == target {
		return amount, true
	}
	rate, ok := rates[code]
	if !ok {
		rate, ok = rates[strings.ToUpper(code)]
	}
	if !ok || rate == 0 {
		return amount, false
	}
	return amount * rate, true
}
