package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestDateRange_Presets(t *testing.T) {
	tests := []struct {
		period   string
		wantFrom string
	}{
		{"week", "2024-05-04"},
		{"month", "2024-04-11"},
		{"year", "2023-05-12"},
		{"bogus", "2024-05-04"}, // unknown preset falls back to week
	}
	for _, tc := range tests {
		from, to, err := DateRange(tc.period, "", "", fixedNow)
		require.NoError(t, err, tc.period)
		assert.Equal(t, tc.wantFrom, from, tc.period)
		assert.Equal(t, "2024-05-10", to, tc.period)
	}
}

func TestDateRange_Custom(t *testing.T) {
	from, to, err := DateRange("custom", "2024-01-01", "2024-02-01", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", from)
	assert.Equal(t, "2024-02-01", to)

	_, _, err = DateRange("custom", "2024-01-01", "", fixedNow)
	assert.Error(t, err)
	_, _, err = DateRange("custom", "", "2024-02-01", fixedNow)
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	s, err := Settings(ModeDateStart)
	require.NoError(t, err)
	assert.Equal(t, "date_start", s.SortBy)
	assert.Equal(t, "CNF", s.Status)
	assert.Equal(t, DateFieldStart, s.Field)
	assert.Empty(t, s.ExcludeStatus)

	s, err = Settings(ModeDateCreated)
	require.NoError(t, err)
	assert.Equal(t, "created_at", s.SortBy)
	assert.Equal(t, "actual", s.Status)
	assert.Equal(t, DateFieldCreated, s.Field)
	assert.Equal(t, "CNX", s.ExcludeStatus)

	_, err = Settings(Mode("date_invoiced"))
	assert.Error(t, err)
}
