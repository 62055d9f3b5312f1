package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/gateway"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/processors"
	"github.com/dmytrosymonov/gto-sales-dashboard/src/services"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// HandleRunReport executes a full report run for the query parameters:
// mode (date_start|date_created), period (week|month|year|custom with
// date_from/date_to), group_by (day|month|quarter|year).
func (h *ReportHandler) HandleRunReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode := processors.Mode(q.Get("mode"))
	if mode == "" {
		mode = processors.ModeDateStart
	}
	period := q.Get("period")
	if period == "" {
		period = "week"
	}
	groupBy, err := processors.ParseGranularity(q.Get("group_by"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := services.ReportParams{
		Mode:       mode,
		Period:     period,
		CustomFrom: q.Get("date_from"),
		CustomTo:   q.Get("date_to"),
		GroupBy:    groupBy,
	}

	result, err := h.reportService.Run(r.Context(), params)
	if err != nil {
		h.sendRunError(w, r, err)
		return
	}
	sendJSON(w, result, http.StatusOK)
}

// HandleRegroup re-buckets the last completed run without re-fetching.
func (h *ReportHandler) HandleRegroup(w http.ResponseWriter, r *http.Request) {
	groupBy, err := processors.ParseGranularity(r.URL.Query().Get("group_by"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.reportService.Regroup(groupBy)
	if err != nil {
		if errors.Is(err, services.ErrNoReport) {
			sendJSONError(w, "No report loaded yet", http.StatusConflict)
			return
		}
		sendJSONError(w, "Failed to regroup report", http.StatusInternalServerError)
		return
	}
	sendJSON(w, result, http.StatusOK)
}

// HandleGetOrderInfo passes a single order lookup through to the upstream.
func (h *ReportHandler) HandleGetOrderInfo(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		sendJSONError(w, "order id is required", http.StatusBadRequest)
		return
	}

	data, err := h.reportService.OrderInfo(r.Context(), orderID)
	if err != nil {
		h.sendRunError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// sendRunError maps gateway failures onto HTTP statuses: upstream status
// codes surface as 502, malformed upstream bodies as 502 with the preview,
// superseded runs as 409.
func (h *ReportHandler) sendRunError(w http.ResponseWriter, r *http.Request, err error) {
	ctxLogger := logger.FromContext(r.Context())

	var transportErr *gateway.TransportError
	var malformedErr *gateway.MalformedResponseError
	switch {
	case errors.As(err, &transportErr):
		ctxLogger.Error("Upstream transport failure", "operation", transportErr.Operation, "status", transportErr.Status)
		sendJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &malformedErr):
		ctxLogger.Error("Upstream returned a malformed response", "operation", malformedErr.Operation, "preview", malformedErr.Preview)
		sendJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, services.ErrSuperseded):
		sendJSONError(w, "Report run superseded by a newer run", http.StatusConflict)
	default:
		ctxLogger.Error("Report run failed", "error", err)
		sendJSONError(w, "Report run failed", http.StatusInternalServerError)
	}
}
