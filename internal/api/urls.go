package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/middleware"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/report"
	"github.com/zhejian/shortlink/internal/service"
)

// createURL handles POST /api/v1/urls
//   - 201 Created: mapping stored
//   - 400 Bad Request: missing or empty url
//   - 500 Internal Server Error: code space exhausted or store failure
func (h *Handler) createURL(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	var req model.CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidBody(c, err)
		return
	}

	m, err := h.urlService.Create(ctx, actor, req.URL)
	if err != nil {
		h.serviceError(c, err, "creating short URL")
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(m))
}

// listURLs handles GET /api/v1/urls and returns the caller's own mappings.
func (h *Handler) listURLs(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	mappings, err := h.urlService.ListForOwner(ctx, actor)
	if err != nil {
		h.serviceError(c, err, "listing URLs")
		return
	}

	resp := make([]model.URLResponse, 0, len(mappings))
	for i := range mappings {
		resp = append(resp, h.toResponse(&mappings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// editURL handles PUT /api/v1/urls/:code
//   - 200 OK: destination replaced
//   - 404 Not Found: unknown code or not the caller's mapping
func (h *Handler) editURL(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	var req model.EditURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidBody(c, err)
		return
	}

	m, err := h.urlService.Edit(ctx, actor, c.Param("code"), req.URL)
	if err != nil {
		h.serviceError(c, err, "editing URL")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m))
}

// changeStatus handles PATCH /api/v1/urls/:code/status
func (h *Handler) changeStatus(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	var req model.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidBody(c, err)
		return
	}

	m, err := h.urlService.ChangeStatus(ctx, actor, c.Param("code"), *req.IsActive)
	if err != nil {
		h.serviceError(c, err, "changing URL status")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m))
}

// deleteURL handles DELETE /api/v1/urls/:code
//   - 200 OK: mapping removed, body carries its last state
//   - 404 Not Found: unknown code or not the caller's mapping
func (h *Handler) deleteURL(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	m, err := h.urlService.Delete(ctx, actor, c.Param("code"))
	if err != nil {
		h.serviceError(c, err, "deleting URL")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(m))
}

// report handles GET /api/v1/admin/report as a CSV download.
func (h *Handler) report(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := middleware.ActorFromContext(c)

	mappings, err := h.urlService.Report(ctx, actor)
	if err != nil {
		h.serviceError(c, err, "building report")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, mappings); err != nil {
		h.logger.ErrorContext(ctx, "failed to render report", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) invalidBody(c *gin.Context, err error) {
	h.logger.WarnContext(c.Request.Context(), "invalid request body",
		slog.String("error", err.Error()),
		slog.String("path", c.Request.URL.Path))
	h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
}

// serviceError maps lifecycle errors to status codes. Unknown codes and
// foreign mappings share one 404 body.
func (h *Handler) serviceError(c *gin.Context, err error, op string) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFoundOrUnauthorized):
		h.errorResponse(c, http.StatusNotFound, "URL not found")
	case errors.Is(err, service.ErrGenerationExhausted):
		h.errorResponse(c, http.StatusInternalServerError, "Could not allocate a short code")
	default:
		h.logger.ErrorContext(ctx, "unexpected error "+op,
			slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}
