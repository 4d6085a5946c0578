package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/types"
)

func (s *Server) writeEstimateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, estimate.ErrInvalidScenario),
		errors.Is(err, estimate.ErrUnknownPlan),
		errors.Is(err, estimate.ErrUnknownBattery):
		log.Ctx(r.Context()).DebugContext(r.Context(), "rejected scenario", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to estimate", slog.Any("error", err))
		writeJSONError(w, "failed to estimate", http.StatusInternalServerError)
	}
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var sc types.Scenario
	if err := decodeBody(w, r, &sc); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode scenario", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	report, err := s.estimator.Run(ctx, sc)
	if err != nil {
		s.writeEstimateError(w, r, err)
		return
	}

	if r.URL.Query().Get("save") == "true" {
		report.ID = estimate.NewReportID()
		if err := s.storage.InsertReport(ctx, report); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to save report", slog.Any("error", err))
			writeJSONError(w, "failed to save report", http.StatusInternalServerError)
			return
		}
		log.Ctx(ctx).InfoContext(ctx, "saved report", slog.String("reportID", report.ID))
	}

	writeJSON(w, report)
}

type compareRequest struct {
	Scenarios []types.Scenario `json:"scenarios"`
}

type compareResponse struct {
	Reports []*estimate.Report `json:"reports"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req compareRequest
	if err := decodeBody(w, r, &req); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode compare request", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Scenarios) == 0 {
		writeJSONError(w, "at least one scenario is required", http.StatusBadRequest)
		return
	}
	if s.maxScenarios > 0 && len(req.Scenarios) > s.maxScenarios {
		writeJSONError(w, fmt.Sprintf("at most %d scenarios are allowed", s.maxScenarios), http.StatusBadRequest)
		return
	}

	reports, err := s.estimator.Compare(ctx, req.Scenarios)
	if err != nil {
		s.writeEstimateError(w, r, err)
		return
	}
	writeJSON(w, compareResponse{Reports: reports})
}
