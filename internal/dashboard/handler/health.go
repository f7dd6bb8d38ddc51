package handler

import (
	"context"
	"net/http"
	"time"

	"driveo/internal/availability"
	"driveo/internal/dashboard/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const readyTimeout = 2 * time.Second

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

type HealthResponse struct {
	Status   string              `json:"status"`
	Database string              `json:"database,omitempty"`
	Index    *availability.Stats `json:"availability_index,omitempty"`
}

type HealthHandler struct {
	db    Pinger
	index service.IndexStats
	log   *logger.Logger
}

func NewHealthHandler(db Pinger, index service.IndexStats, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:    db,
		index: index,
		log:   log,
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.write(w, "Health", http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx, nil); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		h.write(w, "Ready", http.StatusServiceUnavailable, HealthResponse{
			Status:   "unavailable",
			Database: "error",
		})
		return
	}

	resp := HealthResponse{Status: "ready", Database: "ok"}
	if h.index != nil {
		stats := h.index.Stats()
		resp.Index = &stats
	}
	h.write(w, "Ready", http.StatusOK, resp)
}

func (h *HealthHandler) write(w http.ResponseWriter, op string, status int, resp HealthResponse) {
	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", op, "operation", "WriteJSON", "error", err)
	}
}
