package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/storage"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	infos := s.estimator.Tariffs().List()
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.ID] = true
	}

	stored, err := s.storage.ListPlans(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list plans", slog.Any("error", err))
		writeJSONError(w, "failed to list plans", http.StatusInternalServerError)
		return
	}
	for _, p := range stored {
		if seen[p.ID] {
			continue
		}
		infos = append(infos, types.TariffPlanInfo{ID: p.ID, Name: p.Name, Kind: p.Kind})
	}
	slices.SortFunc(infos, func(a, b types.TariffPlanInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, infos)
}

func (s *Server) handleListBatteries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batteries := estimate.BuiltinBatteries()
	seen := make(map[string]bool, len(batteries))
	for _, b := range batteries {
		seen[b.ID] = true
	}

	stored, err := s.storage.ListBatteries(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list batteries", slog.Any("error", err))
		writeJSONError(w, "failed to list batteries", http.StatusInternalServerError)
		return
	}
	for _, b := range stored {
		if !seen[b.ID] {
			batteries = append(batteries, b)
		}
	}
	slices.SortFunc(batteries, func(a, b types.BatteryDevice) int {
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, batteries)
}

// lookupTariff finds a plan in the registry first and the catalog second.
func (s *Server) lookupTariff(ctx context.Context, id string) (*tariff.Tariff, error) {
	if t, ok := s.estimator.Tariffs().Tariff(id); ok {
		return t, nil
	}
	plan, err := s.storage.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return tariff.New(plan)
}

type gridDay struct {
	Weekday string                `json:"weekday"`
	Hours   [24]tariff.Resolution `json:"hours"`
}

type gridResponse struct {
	PlanID string    `json:"planID"`
	Days   []gridDay `json:"days"`
}

func (s *Server) handlePlanGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	t, err := s.lookupTariff(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "plan not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to load plan", slog.String("planID", id), slog.Any("error", err))
		writeJSONError(w, "failed to load plan", http.StatusInternalServerError)
		return
	}

	grid := t.Grid()
	resp := gridResponse{PlanID: id, Days: make([]gridDay, 0, len(grid))}
	for dow, hours := range grid {
		resp.Days = append(resp.Days, gridDay{
			Weekday: time.Weekday(dow).String(),
			Hours:   hours,
		})
	}
	writeJSON(w, resp)
}

// checkPutID fills an empty body ID from the path and rejects mismatches
// and IDs of builtin entries.
func checkPutID(pathID string, bodyID *string, builtin bool) (string, int) {
	if *bodyID == "" {
		*bodyID = pathID
	}
	if *bodyID != pathID {
		return fmt.Sprintf("id mismatch: %s != %s", *bodyID, pathID), http.StatusBadRequest
	}
	if builtin {
		return fmt.Sprintf("%s is builtin and cannot be replaced", pathID), http.StatusConflict
	}
	return "", 0
}

func (s *Server) handlePutPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var plan types.TariffPlan
	if err := decodeBody(w, r, &plan); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode plan", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	_, builtin := s.estimator.Tariffs().Tariff(id)
	if msg, code := checkPutID(id, &plan.ID, builtin); code != 0 {
		writeJSONError(w, msg, code)
		return
	}
	if _, err := tariff.New(plan); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.storage.UpsertPlan(ctx, plan); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save plan", slog.String("planID", id), slog.Any("error", err))
		writeJSONError(w, "failed to save plan", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "saved plan", slog.String("planID", id))
	writeJSON(w, types.TariffPlanInfo{ID: plan.ID, Name: plan.Name, Kind: plan.Kind})
}

func (s *Server) handlePutBattery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var b types.BatteryDevice
	if err := decodeBody(w, r, &b); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode battery", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	_, builtin := estimate.BuiltinBattery(id)
	if msg, code := checkPutID(id, &b.ID, builtin); code != 0 {
		writeJSONError(w, msg, code)
		return
	}
	if err := b.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.storage.UpsertBattery(ctx, b); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save battery", slog.String("batteryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to save battery", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "saved battery", slog.String("batteryID", id))
	writeJSON(w, b)
}
