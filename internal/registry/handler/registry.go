package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"stayledger/internal/registry/service"
	"stayledger/internal/registry/validator"
	apperrors "stayledger/pkg/errors"
	httputil "stayledger/pkg/http"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RegistryHandler struct {
	service   service.RegistryService
	validator *validator.RegistryValidator
	log       *logger.Logger
}

func NewRegistryHandler(svc service.RegistryService, v *validator.RegistryValidator, log *logger.Logger) *RegistryHandler {
	return &RegistryHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

func (h *RegistryHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/calendars", h.CreateCalendar)
	router.GET("/calendars/:id", h.GetCalendar)
	router.GET("/calendars/:id/availability", h.Availability)
	router.GET("/calendars/:id/occupancy", h.Occupancy)
	router.GET("/calendars/:id/reservations", h.ListReservations)
	router.POST("/calendars/:id/reservations", h.Reserve)
	router.DELETE("/calendars/:id/reservations", h.Release)
}

func (h *RegistryHandler) CreateCalendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.CreateCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.ValidateCreateCalendar(&req); err != nil {
		httputil.WriteError(w, apperrors.Validation("Invalid calendar input", map[string]any{"error": err.Error()}))
		return
	}

	if err := h.service.CreateCalendar(r.Context(), req.ID, req.CapacitySqm); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, map[string]any{"id": req.ID, "capacity_sqm": req.CapacitySqm})
}

func (h *RegistryHandler) GetCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	calendar, err := h.service.GetCalendar(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, calendar)
}

// Availability answers whether `units` additional sqm fit in every instant of
// [start, end) given the calendar's currently active reservations.
func (h *RegistryHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	start, err := parseTimeParam(query.Get("start"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	end, err := parseTimeParam(query.Get("end"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	units, err := parseUnitsParam(query.Get("units"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	available, err := h.service.IsAvailable(r.Context(), ps.ByName("id"), start, end, units)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"available": available})
}

func (h *RegistryHandler) Occupancy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	at, err := parseTimeParam(r.URL.Query().Get("at"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	occupied, err := h.service.ReservedUnits(r.Context(), ps.ByName("id"), at)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"reserved_units": occupied})
}

func (h *RegistryHandler) ListReservations(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reservations, total, err := h.service.ListReservations(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, reservations, total, limit, int(offset))
}

// Reserve is the manual mutation path, used for maintenance blocks and other
// operator overrides. Bookings and sub-leases reserve through their own
// services so calendar and ledger state commit together.
func (h *RegistryHandler) Reserve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.ValidateReserve(&req); err != nil {
		httputil.WriteError(w, apperrors.Validation("Invalid reservation input", map[string]any{"error": err.Error()}))
		return
	}

	holder := model.Holder{Kind: req.HolderKind, ID: req.HolderID}
	reservation, err := h.service.Reserve(r.Context(), ps.ByName("id"), holder, req.StartTime, req.EndTime, req.Units)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, reservation)
}

func (h *RegistryHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.ValidateRelease(&req); err != nil {
		httputil.WriteError(w, apperrors.Validation("Invalid release input", map[string]any{"error": err.Error()}))
		return
	}

	holder := model.Holder{Kind: req.HolderKind, ID: req.HolderID}
	if err := h.service.Release(r.Context(), ps.ByName("id"), holder, req.StartTime, req.EndTime); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("missing required time parameter")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("time parameters must be RFC 3339 timestamps")
	}
	return t, nil
}

func parseUnitsParam(raw string) (int64, error) {
	if raw == "" {
		return 0, apperrors.InvalidInput("missing required units parameter")
	}
	units, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || units <= 0 {
		return 0, apperrors.InvalidInput("units must be a positive integer")
	}
	return units, nil
}
