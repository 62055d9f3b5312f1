package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/models"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/processors"
)

// ReportParams selects what a report run covers.
type ReportParams struct {
	Mode       processors.Mode
	Period     string // week | month | year | custom
	CustomFrom string
	CustomTo   string
	GroupBy    processors.Granularity
}

// Common service errors.
var (
	// ErrNoReport is returned by Regroup before any run has completed.
	ErrNoReport = errors.New("no completed report run to regroup")
	// ErrSuperseded marks a run whose results were discarded because a
	// newer run started while it was in flight.
	ErrSuperseded = errors.New("report run superseded by a newer run")
)

// ReportService runs the reporting pipeline and re-buckets completed runs.
type ReportService interface {
	// Run executes currencies -> rates -> orders -> aggregate. Reference
	// data failures degrade to an identity rate map; an orders failure is
	// the run's terminal failure.
	Run(ctx context.Context, params ReportParams) (*models.ReportResult, error)

	// Regroup re-buckets the last completed run's day series without any
	// network access.
	Regroup(groupBy processors.Granularity) (*models.ReportResult, error)

	// OrderInfo passes a single order detail lookup through to the upstream.
	OrderInfo(ctx context.Context, orderID string) (json.RawMessage, error)
}
