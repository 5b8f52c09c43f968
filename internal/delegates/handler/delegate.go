package handler

import (
	"encoding/json"
	"net/http"

	"stayledger/internal/delegates/service"
	"stayledger/internal/delegates/validator"
	apperrors "stayledger/pkg/errors"
	httputil "stayledger/pkg/http"
	"stayledger/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type DelegateHandler struct {
	service   service.DelegateService
	validator *validator.DelegateValidator
	log       *logger.Logger
}

func NewDelegateHandler(svc service.DelegateService, v *validator.DelegateValidator, log *logger.Logger) *DelegateHandler {
	return &DelegateHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

func (h *DelegateHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/delegates/:id", h.GetDelegate)

	router.POST("/delegates/:id/fundraising/configure", h.ConfigureFundraising)
	router.POST("/delegates/:id/fundraising/propose", h.ProposeTerms)
	router.POST("/delegates/:id/fundraising/open", h.OpenFundraising)
	router.POST("/delegates/:id/invest", h.Invest)
	router.POST("/delegates/:id/claim", h.Claim)
	router.GET("/delegates/:id/positions/:holder", h.GetPosition)

	router.POST("/delegates/:id/rent", h.CollectRent)
	router.POST("/delegates/:id/fees/withdraw", h.WithdrawFees)

	router.POST("/delegates/:id/subleases", h.CreateSublease)
	router.GET("/delegates/:id/subleases", h.ListSubleases)
	router.GET("/delegates/:id/subleases/:sid", h.GetSublease)
	router.POST("/delegates/:id/subleases/:sid/rent", h.CollectSubletRent)
	router.POST("/delegates/:id/subleases/:sid/complete", h.CompleteSublease)
	router.POST("/delegates/:id/subleases/:sid/cancel", h.CancelSublease)
}

func (h *DelegateHandler) GetDelegate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	delegate, err := h.service.GetDelegate(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, delegate)
}

func (h *DelegateHandler) ConfigureFundraising(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.ConfigureRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	delegate, err := h.service.ConfigureFundraising(r.Context(), ps.ByName("id"), req.Caller, req.TotalUnits, req.UnitPrice, req.FeeBps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, delegate)
}

func (h *DelegateHandler) ProposeTerms(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	proposal, err := h.service.ProposeTerms(r.Context(), ps.ByName("id"), req.Caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, proposal)
}

func (h *DelegateHandler) OpenFundraising(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.OpenFundraising(r.Context(), ps.ByName("id"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *DelegateHandler) Invest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

func (h *DelegateHandler) Claim(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

func (h *DelegateHandler) GetPosition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	position, err := h.service.GetPosition(r.Context(), ps.ByName("id"), ps.ByName("holder"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, position)
}

func (h *DelegateHandler) CollectRent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CollectRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	delegate, err := h.service.CollectRent(r.Context(), ps.ByName("id"), req.Caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, delegate)
}

func (h *DelegateHandler) WithdrawFees(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	amount, err := h.service.WithdrawFees(r.Context(), ps.ByName("id"), req.Caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]any{"amount": amount})
}

func (h *DelegateHandler) CreateSublease(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.SubleaseRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	sublease, err := h.service.CreateSublease(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, sublease)
}

func (h *DelegateHandler) ListSubleases(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subleases, total, err := h.service.ListSubleases(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, subleases, total, limit, int(offset))
}

func (h *DelegateHandler) GetSublease(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sublease, err := h.service.GetSublease(r.Context(), ps.ByName("id"), ps.ByName("sid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, sublease)
}

func (h *DelegateHandler) CollectSubletRent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CollectRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	sublease, err := h.service.CollectSubletRent(r.Context(), ps.ByName("id"), ps.ByName("sid"), req.Caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, sublease)
}

func (h *DelegateHandler) CompleteSublease(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.CompleteSublease(r.Context(), ps.ByName("id"), ps.ByName("sid"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *DelegateHandler) CancelSublease(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CallerRequest
	if ok := h.decodeAndValidate(w, r, &req); !ok {
		return
	}

	if err := h.service.CancelSublease(r.Context(), ps.ByName("id"), ps.ByName("sid"), req.Caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *DelegateHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
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
