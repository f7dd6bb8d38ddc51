package handler

import (
	"errors"
	"net/http"

	"driveo/internal/vehicles/service"
	"driveo/internal/vehicles/validator"
	apperrors "driveo/pkg/errors"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// multipartOverhead is the room left for form boundaries and headers around the image.
const multipartOverhead = 1 << 20

type VehicleHandler struct {
	service service.VehicleService
	auth    *middleware.Authenticator
	log     *logger.Logger
}

func NewVehicleHandler(service service.VehicleService, auth *middleware.Authenticator, log *logger.Logger) *VehicleHandler {
	return &VehicleHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *VehicleHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/vehicles", h.Search)
	router.GET("/api/v1/vehicles/available", h.Available)
	router.GET("/api/v1/vehicles/id/:id", h.auth.Optional(h.GetByID))
	router.GET("/api/v1/vehicles/id/:id/availability", h.Availability)

	router.POST("/api/v1/vehicles", h.auth.Require(h.Create, model.RoleAdmin, model.RoleVendor))
	router.PATCH("/api/v1/vehicles/id/:id", h.auth.Require(h.Update, model.RoleAdmin, model.RoleVendor))
	router.DELETE("/api/v1/vehicles/id/:id", h.auth.Require(h.Delete, model.RoleAdmin, model.RoleVendor))
	router.POST("/api/v1/vehicles/id/:id/images", h.auth.Require(h.UploadImage, model.RoleAdmin, model.RoleVendor))

	router.GET("/api/v1/vendor/vehicles", h.auth.Require(h.ListMine, model.RoleVendor))

	router.GET("/api/v1/admin/vehicles/pending", h.auth.Require(h.ListPending, model.RoleAdmin))
	router.POST("/api/v1/admin/vehicles/id/:id/approve", h.auth.Require(h.Approve, model.RoleAdmin))
	router.POST("/api/v1/admin/vehicles/id/:id/reject", h.auth.Require(h.Reject, model.RoleAdmin))
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var vehicle model.Vehicle
	if err := httputil.DecodeJSON(r, &vehicle); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), middleware.ActorFromContext(r.Context()), &vehicle); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, vehicle); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *VehicleHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vehicle, err := h.service.GetByID(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", vehicle)
}

func (h *VehicleHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	vehicles, total, err := h.service.Search(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	h.writePaginated(w, "Search", vehicles, total, limit, offset)
}

func (h *VehicleHandler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}
	pickup, err := httputil.ParseTimeParam(r, "pickup")
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}
	dropoff, err := httputil.ParseTimeParam(r, "dropoff")
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	vehicles, err := h.service.Available(r.Context(), filter, pickup, dropoff)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}
	h.writeSuccess(w, "Available", vehicles)
}

func (h *VehicleHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, err := httputil.ParseTimeParam(r, "from")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	to, err := httputil.ParseTimeParam(r, "to")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	view, err := h.service.Availability(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	h.writeSuccess(w, "Availability", view)
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.VehicleUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	vehicle, err := h.service.Update(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}
	h.writeSuccess(w, "Update", vehicle)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *VehicleHandler) UploadImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, validator.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(validator.MaxImageSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, "UploadImage", apperrors.New(apperrors.CodeBadRequest, "Image is too large", http.StatusRequestEntityTooLarge))
			return
		}
		h.writeError(w, "UploadImage", apperrors.InvalidInput("Invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, "UploadImage", apperrors.InvalidInput("Form field 'image' is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := file.Read(sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, 0); err != nil {
			h.writeError(w, "UploadImage", apperrors.Internal("Failed to read image", err))
			return
		}
	}

	vehicle, err := h.service.AddImage(r.Context(), middleware.ActorFromContext(r.Context()), ps.ByName("id"), service.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.writeError(w, "UploadImage", err)
		return
	}

	if err := httputil.WriteCreated(w, vehicle); err != nil {
		h.log.Error("failed to write created response", "handler", "UploadImage", "operation", "WriteCreated", "error", err)
	}
}

func (h *VehicleHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	vehicles, total, err := h.service.ListByVendor(r.Context(), middleware.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}
	h.writePaginated(w, "ListMine", vehicles, total, limit, offset)
}

func (h *VehicleHandler) ListPending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListPending", err)
		return
	}

	vehicles, total, err := h.service.ListPending(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "ListPending", err)
		return
	}
	h.writePaginated(w, "ListPending", vehicles, total, limit, offset)
}

func (h *VehicleHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vehicle, err := h.service.Approve(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}
	h.writeSuccess(w, "Approve", vehicle)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *VehicleHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	vehicle, err := h.service.Reject(r.Context(), ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}
	h.writeSuccess(w, "Reject", vehicle)
}

func parseFilter(r *http.Request) (model.VehicleFilter, error) {
	query := r.URL.Query()
	filter := model.VehicleFilter{
		District:     query.Get("district"),
		Location:     query.Get("location"),
		Brand:        query.Get("brand"),
		CarType:      query.Get("car_type"),
		FuelType:     query.Get("fuel_type"),
		Transmission: query.Get("transmission"),
	}

	var err error
	if filter.MinSeats, err = httputil.ParseIntParam(r, "min_seats"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = httputil.ParseFloatParam(r, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = httputil.ParseFloatParam(r, "max_price"); err != nil {
		return filter, err
	}
	if filter.MinPrice > 0 && filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return filter, apperrors.InvalidInput("min_price cannot exceed max_price")
	}
	return filter, nil
}

func (h *VehicleHandler) writeSuccess(w http.ResponseWriter, op string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", op, "operation", "WriteSuccess", "error", err)
	}
}

func (h *VehicleHandler) writePaginated(w http.ResponseWriter, op string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", op, "operation", "WritePaginated", "error", err)
	}
}

func (h *VehicleHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

