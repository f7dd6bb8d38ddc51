package handler

import (
	"net/http"

	"driveo/internal/bookings/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, auth *middleware.Authenticator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.auth.Require(h.Create, model.RoleUser))
	router.GET("/api/v1/bookings/mine", h.auth.Require(h.ListMine))
	router.GET("/api/v1/bookings/id/:id", h.auth.Require(h.GetByID))
	router.POST("/api/v1/bookings/id/:id/pay", h.auth.Require(h.Pay, model.RoleUser))
	router.POST("/api/v1/bookings/id/:id/cancel", h.auth.Require(h.Cancel))

	router.GET("/api/v1/vendor/bookings", h.auth.Require(h.ListForVendor, model.RoleVendor))

	router.GET("/api/v1/admin/bookings", h.auth.Require(h.List, model.RoleAdmin))
	router.PATCH("/api/v1/admin/bookings/id/:id/status", h.auth.Require(h.UpdateStatus, model.RoleAdmin))
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), middleware.ActorFromContext(r.Context()), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListMine(r.Context(), middleware.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}
	h.writePaginated(w, "ListMine", bookings, total, limit, offset)
}

func (h *BookingHandler) ListForVendor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForVendor", err)
		return
	}

	bookings, total, err := h.service.ListForVendor(r.Context(), middleware.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListForVendor", err)
		return
	}
	h.writePaginated(w, "ListForVendor", bookings, total, limit, offset)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := model.BookingFilter{
		Status:    query.Get("status"),
		VehicleID: query.Get("vehicle_id"),
		UserID:    query.Get("user_id"),
		VendorID:  query.Get("vendor_id"),
	}

	bookings, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	h.writePaginated(w, "List", bookings, total, limit, offset)
}

type payRequest struct {
	Reference string `json:"reference"`
}

func (h *BookingHandler) Pay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req payRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Pay", err)
		return
	}

	booking, err := h.service.Pay(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"), req.Reference)
	if err != nil {
		h.writeError(w, "Pay", err)
		return
	}
	h.writeSuccess(w, "Pay", booking)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "Cancel", err)
			return
		}
	}

	booking, err := h.service.Cancel(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeSuccess(w, "Cancel", booking)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), req.Status)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}
	h.writeSuccess(w, "UpdateStatus", booking)
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, op string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", op, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writePaginated(w http.ResponseWriter, op string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", op, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}
