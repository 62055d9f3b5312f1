package processors

import (
	"fmt"
	"time"
)

// Mode is the date basis of a report run.
type Mode string

const (
	// ModeDateStart reports confirmed orders by travel start date.
	ModeDateStart Mode = "date_start"
	// ModeDateCreated reports all non-cancelled orders by creation date.
	ModeDateCreated Mode = "date_created"
)

// ModeSettings maps a report mode to the upstream query it implies and the
// order field used for day bucketing. ExcludeStatus is applied after the
// fetch; the upstream's "actual" filter still returns cancelled orders.
type ModeSettings struct {
	SortBy        string
	Status        string
	Field         DateField
	ExcludeStatus string
}

var modeTable = map[Mode]ModeSettings{
	ModeDateStart:   {SortBy: "date_start", Status: "CNF", Field: DateFieldStart},
	ModeDateCreated: {SortBy: "created_at", Status: "actual", Field: DateFieldCreated, ExcludeStatus: "CNX"},
}

// Settings resolves a mode against the mode table.
func Settings(mode Mode) (ModeSettings, error) {
	s, ok := modeTable[mode]
	if !ok {
		return ModeSettings{}, fmt.Errorf("unknown report mode %q", mode)
	}
	return s, nil
}

// Period presets are trailing windows that include today, expressed as the
// number of days reaching back from it.
var periodPresets = map[string]int{
	"week":  6,
	"month": 29,
	"year":  364,
}

// DateRange resolves a period selection into inclusive from/to dates. The
// custom period takes user bounds; presets end at today. An unknown preset
// falls back to week, matching the dashboard default.
func DateRange(period, customFrom, customTo string, now time.Time) (string, string, error) {
	if period == "custom" {
		if customFrom == "" || customTo == "" {
			return "", "", fmt.Errorf("custom period requires both date_from and date_to")
		}
		return customFrom, customTo, nil
	}

	days, ok := periodPresets[period]
	if !ok {
		days = periodPresets["week"]
	}
	dateTo := now.Format("2006-01-02")
	dateFrom := now.AddDate(0, 0, -days).Format("2006-01-02")
	return dateFrom, dateTo, nil
}
