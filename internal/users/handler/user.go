package handler

import (
	"net/http"
	"strconv"

	"driveo/internal/users/service"
	apperrors "driveo/pkg/errors"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, auth *middleware.Authenticator, log *logger.Logger) *UserHandler {
	return &UserHandler{service: service, auth: auth, log: log}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/users/me", h.auth.Require(h.Me))
	router.PATCH("/api/v1/users/me", h.auth.Require(h.UpdateMe))

	router.GET("/api/v1/admin/users", h.auth.Require(h.List, model.RoleAdmin))
	router.GET("/api/v1/admin/users/id/:id", h.auth.Require(h.GetByID, model.RoleAdmin))
	router.DELETE("/api/v1/admin/users/id/:id", h.auth.Require(h.Delete, model.RoleAdmin))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor := middleware.ActorFromContext(r.Context())
	user, err := h.service.GetByID(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, "Me", err)
		return
	}
	h.writeSuccess(w, "Me", user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var updates model.UserProfileUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "UpdateMe", err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.ActorFromContext(r.Context()), &updates)
	if err != nil {
		h.writeError(w, "UpdateMe", err)
		return
	}
	h.writeSuccess(w, "UpdateMe", user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := model.UserFilter{
		Role:   query.Get("role"),
		Search: query.Get("search"),
	}
	if raw := query.Get("is_verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, "List", apperrors.InvalidInput("invalid is_verified parameter: "+raw))
			return
		}
		filter.IsVerified = &verified
	}

	users, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if err := httputil.WritePaginated(w, users, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *UserHandler) writeSuccess(w http.ResponseWriter, op string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", op, "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}
