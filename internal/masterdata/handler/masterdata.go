package handler

import (
	"net/http"

	"driveo/internal/masterdata/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MasterDataHandler struct {
	service service.MasterDataService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewMasterDataHandler(service service.MasterDataService, auth *middleware.Authenticator, log *logger.Logger) *MasterDataHandler {
	return &MasterDataHandler{service: service, auth: auth, log: log}
}

func (h *MasterDataHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/locations", h.Locations)
	router.GET("/api/v1/locations/districts", h.Districts)
	router.POST("/api/v1/admin/locations", h.auth.Require(h.CreateLocation, model.RoleAdmin))
	router.DELETE("/api/v1/admin/locations/id/:id", h.auth.Require(h.DeleteLocation, model.RoleAdmin))

	router.GET("/api/v1/car-models", h.CarModels)
	router.POST("/api/v1/admin/car-models", h.auth.Require(h.CreateCarModel, model.RoleAdmin))
	router.DELETE("/api/v1/admin/car-models/id/:id", h.auth.Require(h.DeleteCarModel, model.RoleAdmin))
}

func (h *MasterDataHandler) Locations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	locations, err := h.service.Locations(r.Context(), r.URL.Query().Get("district"))
	if err != nil {
		h.writeError(w, "Locations", err)
		return
	}
	h.writeSuccess(w, "Locations", locations)
}

func (h *MasterDataHandler) Districts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	districts, err := h.service.Districts(r.Context())
	if err != nil {
		h.writeError(w, "Districts", err)
		return
	}
	h.writeSuccess(w, "Districts", districts)
}

func (h *MasterDataHandler) CreateLocation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var location model.Location
	if err := httputil.DecodeJSON(r, &location); err != nil {
		h.writeError(w, "CreateLocation", err)
		return
	}
	if err := h.service.CreateLocation(r.Context(), &location); err != nil {
		h.writeError(w, "CreateLocation", err)
		return
	}
	if err := httputil.WriteCreated(w, location); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateLocation", "operation", "WriteCreated", "error", err)
	}
}

func (h *MasterDataHandler) DeleteLocation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteLocation(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "DeleteLocation", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *MasterDataHandler) CarModels(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	models, err := h.service.CarModels(r.Context(), r.URL.Query().Get("brand"))
	if err != nil {
		h.writeError(w, "CarModels", err)
		return
	}
	h.writeSuccess(w, "CarModels", models)
}

func (h *MasterDataHandler) CreateCarModel(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var carModel model.CarModel
	if err := httputil.DecodeJSON(r, &carModel); err != nil {
		h.writeError(w, "CreateCarModel", err)
		return
	}
	if err := h.service.CreateCarModel(r.Context(), &carModel); err != nil {
		h.writeError(w, "CreateCarModel", err)
		return
	}
	if err := httputil.WriteCreated(w, carModel); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateCarModel", "operation", "WriteCreated", "error", err)
	}
}

func (h *MasterDataHandler) DeleteCarModel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteCarModel(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "DeleteCarModel", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *MasterDataHandler) writeSuccess(w http.ResponseWriter, op string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", op, "operation", "WriteSuccess", "error", err)
	}
}

func (h *MasterDataHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}
