package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/service"
)

// register handles POST /api/v1/auth/register
//   - 201 Created: account stored
//   - 400 Bad Request: missing fields, mismatched passwords or bad email
//   - 409 Conflict: username or email already registered
func (h *Handler) register(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidBody(c, err)
		return
	}

	user, err := h.authService.Register(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAccountExists):
			h.errorResponse(c, http.StatusConflict, "Username or email already registered")
		default:
			h.logger.ErrorContext(ctx, "unexpected error registering user",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// login handles POST /api/v1/auth/login
//   - 200 OK: bearer token issued
//   - 400 Bad Request: missing fields or bad email format
//   - 401 Unauthorized: unknown email or wrong password
func (h *Handler) login(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidBody(c, err)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			h.errorResponse(c, http.StatusUnauthorized, "Invalid email or password")
		default:
			h.logger.ErrorContext(ctx, "unexpected error during login",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
