package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"driveo/internal/invoices/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type InvoiceHandler struct {
	service service.InvoiceService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewInvoiceHandler(service service.InvoiceService, auth *middleware.Authenticator, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: service, auth: auth, log: log}
}

func (h *InvoiceHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings/id/:id/invoice", h.auth.Require(h.Download))
	router.GET("/api/v1/invoices/mine", h.auth.Require(h.ListMine))
	router.GET("/api/v1/admin/invoices", h.auth.Require(h.ListAll, model.RoleAdmin))
}

func (h *InvoiceHandler) Download(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, inv, err := h.service.PDF(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Download", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.InvoiceNumber+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Error("failed to write invoice body", "handler", "Download", "operation", "Write", "error", err)
	}
}

func (h *InvoiceHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	invoices, total, err := h.service.ListMine(r.Context(), middleware.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}
	h.writePaginated(w, "ListMine", invoices, total, limit, offset)
}

func (h *InvoiceHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	invoices, total, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}
	h.writePaginated(w, "ListAll", invoices, total, limit, offset)
}

func (h *InvoiceHandler) writePaginated(w http.ResponseWriter, op string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", op, "operation", "WritePaginated", "error", err)
	}
}

func (h *InvoiceHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}
