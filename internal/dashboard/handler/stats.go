package handler

import (
	"net/http"

	"driveo/internal/dashboard/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type StatsHandler struct {
	service service.StatsService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewStatsHandler(service service.StatsService, auth *middleware.Authenticator, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *StatsHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/admin/stats", h.auth.Require(h.Get, model.RoleAdmin))
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Get(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}
