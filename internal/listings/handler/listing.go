package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"stayledger/internal/listings/service"
	"stayledger/internal/listings/validator"
	apperrors "stayledger/pkg/errors"
	httputil "stayledger/pkg/http"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ListingHandler struct {
	service   service.ListingService
	validator *validator.ListingValidator
	log       *logger.Logger
}

func NewListingHandler(svc service.ListingService, v *validator.ListingValidator, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

func (h *ListingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/properties", h.CreateProperty)
	router.GET("/properties", h.ListProperties)
	router.GET("/properties/:id", h.GetProperty)
	router.PATCH("/properties/:id", h.UpdateProperty)
	router.GET("/properties/:id/bookings", h.ListBookings)

	router.POST("/bookings", h.Book)
	router.GET("/bookings/:id", h.GetBooking)
	router.POST("/bookings/:id/rent", h.PayRent)
	router.POST("/bookings/:id/income/withdraw", h.WithdrawLandlordIncome)
	router.POST("/bookings/:id/complete", h.CompleteBooking)
	router.POST("/bookings/:id/cancel", h.CancelBooking)
	router.POST("/bookings/:id/default", h.HandleDefault)

	router.POST("/bookings/:id/deposit-split", h.ProposeDepositSplit)
	router.POST("/bookings/:id/deposit-split/confirm", h.ConfirmDepositSplit)
	router.GET("/bookings/:id/deposit-split", h.GetDepositProposal)

	router.POST("/bookings/:id/tokenise", h.TokeniseBooking)
	router.POST("/bookings/:id/tokenisation/approve", h.ApproveTokenisation)
	router.GET("/bookings/:id/tokenisation", h.GetTokenProposal)
	router.POST("/bookings/:id/invest", h.Invest)
	router.POST("/bookings/:id/claim", h.Claim)
	router.GET("/bookings/:id/positions/:holder", h.GetPosition)

	router.POST("/bookings/:id/delegate", h.AssignDelegate)
}

func (h *ListingHandler) CreateProperty(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var property model.Property
	if err := json.NewDecoder(r.Body).Decode(&property); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.CreateProperty(r.Context(), &property); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, property)
}

func (h *ListingHandler) GetProperty(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	property, err := h.service.GetProperty(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, property)
}

func (h *ListingHandler) ListProperties(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	properties, total, err := h.service.ListProperties(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, properties, total, limit, int(offset))
}

func (h *ListingHandler) UpdateProperty(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.PropertyUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	caller := callerAccount(r)
	if caller == "" {
		httputil.WriteError(w, apperrors.Unauthorized("Missing caller account header"))
		return
	}

	if err := h.service.UpdateProperty(r.Context(), ps.ByName("id"), caller, &updates); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	booking, err := h.service.Book(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

func (h *ListingHandler) GetBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, booking)
}

func (h *ListingHandler) ListBookings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.ListBookings(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, int(offset))
}

func (h *ListingHandler) PayRent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.PayRentRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	booking, err := h.service.PayRent(r.Context(), ps.ByName("id"), req.Caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

func (h *ListingHandler) WithdrawLandlordIncome(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	amount, err := h.service.WithdrawLandlordIncome(r.Context(), ps.ByName("id"), req.Caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"amount": amount})
}

func (h *ListingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.lifecycleAction(w, r, ps, h.service.CompleteBooking)
}

func (h *ListingHandler) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.lifecycleAction(w, r, ps, h.service.CancelBooking)
}

func (h *ListingHandler) HandleDefault(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.lifecycleAction(w, r, ps, h.service.HandleDefault)
}

func (h *ListingHandler) ProposeDepositSplit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.DepositSplitRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	proposal, err := h.service.ProposeDepositSplit(r.Context(), ps.ByName("id"), req.Caller, req.TenantBps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, proposal)
}

func (h *ListingHandler) ConfirmDepositSplit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.ConfirmDepositSplit(r.Context(), ps.ByName("id"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) GetDepositProposal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	proposal, err := h.service.GetDepositProposal(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposal)
}

func (h *ListingHandler) TokeniseBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.TokeniseRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.TokeniseBooking(r.Context(), ps.ByName("id"), req.Caller, req.TotalUnits, req.UnitPrice, req.FeeBps); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) ApproveTokenisation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.ApproveTokenisation(r.Context(), ps.ByName("id"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) GetTokenProposal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	proposal, err := h.service.GetTokenProposal(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposal)
}

func (h *ListingHandler) Invest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.InvestRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	position, err := h.service.Invest(r.Context(), ps.ByName("id"), req.Caller, req.Units)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, position)
}

func (h *ListingHandler) Claim(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	amount, err := h.service.Claim(r.Context(), ps.ByName("id"), req.Caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"amount": amount})
}

func (h *ListingHandler) GetPosition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	position, err := h.service.GetPosition(r.Context(), ps.ByName("id"), ps.ByName("holder"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, position)
}

func (h *ListingHandler) AssignDelegate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.AssignDelegateRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	delegate, err := h.service.AssignDelegate(r.Context(), ps.ByName("id"), req.Caller, req.Operator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, delegate)
}

func (h *ListingHandler) lifecycleAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params, action func(ctx context.Context, bookingID, caller string) error) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := action(r.Context(), ps.ByName("id"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	if err := h.validator.ValidateRequest(req); err != nil {
		httputil.WriteError(w, apperrors.Validation("Invalid request", map[string]any{"error": err.Error()}))
		return false
	}
	return true
}

func callerAccount(r *http.Request) string {
	return r.Header.Get("X-Account")
}
