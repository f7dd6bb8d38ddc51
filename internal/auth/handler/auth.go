package handler

import (
	"net/http"

	"driveo/internal/auth/service"
	httputil "driveo/pkg/http"
	"driveo/pkg/logger"
	"driveo/pkg/middleware"
	"driveo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AuthHandler struct {
	service service.AuthService
	limiter *middleware.RateLimiter
	log     *logger.Logger
}

func NewAuthHandler(service service.AuthService, limiter *middleware.RateLimiter, log *logger.Logger) *AuthHandler {
	return &AuthHandler{service: service, limiter: limiter, log: log}
}

// RegisterRoutes mounts the auth endpoints behind the per-IP auth limiter.
func (h *AuthHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/register", h.limiter.Handle(h.Register))
	router.POST("/api/v1/auth/verify-otp", h.limiter.Handle(h.VerifyOTP))
	router.POST("/api/v1/auth/resend-otp", h.limiter.Handle(h.ResendOTP))
	router.POST("/api/v1/auth/login", h.limiter.Handle(h.Login))
	router.POST("/api/v1/auth/refresh", h.limiter.Handle(h.Refresh))
	router.POST("/api/v1/auth/forgot-password", h.limiter.Handle(h.ForgotPassword))
	router.POST("/api/v1/auth/reset-password", h.limiter.Handle(h.ResetPassword))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}
	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.VerifyOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "VerifyOTP", err)
		return
	}

	pair, err := h.service.VerifyOTP(r.Context(), &req)
	if err != nil {
		h.writeError(w, "VerifyOTP", err)
		return
	}
	h.writeSuccess(w, "VerifyOTP", pair)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ResendOTP", err)
		return
	}

	if err := h.service.ResendOTP(r.Context(), &req); err != nil {
		h.writeError(w, "ResendOTP", err)
		return
	}
	h.writeAccepted(w, "ResendOTP", "If the account is awaiting verification, a new code has been sent")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	pair, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}
	h.writeSuccess(w, "Login", pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Refresh", err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Refresh", err)
		return
	}
	h.writeSuccess(w, "Refresh", pair)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ForgotPassword", err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), &req); err != nil {
		h.writeError(w, "ForgotPassword", err)
		return
	}
	h.writeAccepted(w, "ForgotPassword", "If the account exists, a reset code has been sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AuthHandler) writeSuccess(w http.ResponseWriter, op string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", op, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) writeAccepted(w http.ResponseWriter, op, message string) {
	if err := httputil.WriteAccepted(w, map[string]string{"message": message}); err != nil {
		h.log.Error("failed to write accepted response", "handler", op, "operation", "WriteAccepted", "error", err)
	}
}

func (h *AuthHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}
