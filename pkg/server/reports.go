package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/storage"
)

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	report, err := s.storage.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "report not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get report", slog.String("reportID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}
