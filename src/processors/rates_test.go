package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
)

var testCurrencies = []models.CurrencyRecord{
	{ID: "1", Code: "EUR"},
	{ID: "2", Code: "USD"},
	{ID: "3", Code: "UAH"},
	{ID: "4", Code: "kzt"},
}

func quote(from, to models.Identifier, valueFrom, valueTo float64) models.RateQuote {
	return models.RateQuote{
		CurrencyFrom: from,
		CurrencyTo:   to,
		ValueFrom:    models.FloatString(valueFrom),
		ValueTo:      models.FloatString(valueTo),
	}
}

func TestBuildRateMap_TargetAlwaysOne(t *testing.T) {
	rates, _ := BuildRateMap(nil, nil, "EUR", "UAH", nil)
	assert.Equal(t, 1.0, rates["EUR"])

	rates, _ = BuildRateMap(testCurrencies, []models.RateQuote{
		quote("2", "1", 100, 92),
		quote("1", "3", 1, 40),
	}, "EUR", "UAH", []string{"UAH", "USD", "EUR", "KZT"})
	assert.Equal(t, 1.0, rates["EUR"])
}

func TestBuildRateMap_DirectPairs(t *testing.T) {
	rates, _ := BuildRateMap(testCurrencies, []models.RateQuote{
		quote("2", "1", 100, 92), // 100 USD = 92 EUR
		quote("1", "3", 1, 40),   // 1 EUR = 40 UAH
	}, "EUR", "UAH", []string{"USD", "UAH"})

	assert.InDelta(t, 0.92, rates["USD"], 1e-9)
	assert.InDelta(t, 1.0/40, rates["UAH"], 1e-9)
}

func TestBuildRateMap_CrossRateThroughAnchor(t *testing.T) {
	// No direct USD->EUR quote; both legs quoted against the anchor.
	rates, warnings := BuildRateMap(testCurrencies, []models.RateQuote{
		quote("1", "3", 1, 40), // 1 EUR = 40 UAH
		quote("2", "3", 1, 38), // 1 USD = 38 UAH
	}, "EUR", "UAH", []string{"UAH", "USD", "EUR", "KZT"})

	require.Contains(t, rates, "USD")
	assert.InDelta(t, 38.0/40.0, rates["USD"], 1e-9)
	assert.InDelta(t, 1.0/40, rates["UAH"], 1e-9)

	// KZT has no quote at all and stays absent, surfaced as a warning.
	assert.NotContains(t, rates, "KZT")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "KZT")
}

func TestBuildRateMap_SkipsUnknownIdsAndSelfPairs(t *testing.T) {
	rates, _ := BuildRateMap(testCurrencies, []models.RateQuote{
		quote("99", "1", 1, 2), // unknown from-id
		quote("1", "99", 1, 2), // unknown to-id
		quote("1", "1", 3, 7),  // target paired with itself
	}, "EUR", "UAH", nil)

	assert.Equal(t, models.RateMap{"EUR": 1}, rates)
}

func TestBuildRateMap_CodeNormalizedToUppercase(t *testing.T) {
	// The dictionary lists "kzt" lowercase; quotes must still resolve.
	rates, _ := BuildRateMap(testCurrencies, []models.RateQuote{
		quote("4", "1", 1000, 2), // 1000 KZT = 2 EUR
	}, "EUR", "UAH", []string{"KZT"})

	assert.InDelta(t, 0.002, rates["KZT"], 1e-9)
}

func TestConvert_Identity(t *testing.T) {
	rates := models.RateMap{"EUR": 1, "USD": 0.95}

	for _, amount := range []float64{0, 1, -3.5, 123456.78} {
		got, ok := Convert(amount, "EUR", "EUR", rates)
		assert.True(t, ok)
		assert.Equal(t, amount, got)
	}

	got, ok := Convert(100, "eur", "EUR", rates)
	assert.True(t, ok)
	assert.Equal(t, 100.0, got)
}

func TestConvert_ZeroShortCircuits(t *testing.T) {
	// Zero never consults the map, even for unknown codes.
	got, ok := Convert(0, "XXX", "EUR", models.RateMap{})
	assert.True(t, ok)
	assert.Equal(t, 0.0, got)
}

func TestConvert_Multiplies(t *testing.T) {
	rates := models.RateMap{"EUR": 1, "USD": 0.95}

	got, ok := Convert(200, "USD", "EUR", rates)
	assert.True(t, ok)
	assert.InDelta(t, 190.0, got, 1e-9)

	got, ok = Convert(200, "usd", "EUR", rates)
	assert.True(t, ok)
	assert.InDelta(t, 190.0, got, 1e-9)
}

func TestConvert_UnknownCodePassesThrough(t *testing.T) {
	rates := models.RateMap{"EUR": 1}

	got, ok := Convert(150, "KZT", "EUR", rates)
	assert.False(t, ok)
	assert.Equal(t, 150.0, got, "unknown currency must pass through, not zero or drop")
}
