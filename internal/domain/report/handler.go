package report

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the public, token-gated report views. These routes carry no
// authentication: possession of an unexpired share token is the credential.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/:token", h.GetReport)
	api.POST("/reports/:token/export", h.ExportReport)
}

func (h *Handler) GetReport(c echo.Context) error {
	view, err := h.svc.ResolveToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return tokenError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ExportReport(c echo.Context) error {
	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.Export(c.Request().Context(), c.Param("token"), req)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired) {
			return tokenError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+result.FileName+`"`)
	return c.Blob(http.StatusOK, result.ContentType, result.Content)
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return echo.NewHTTPError(http.StatusGone, "this report link has expired")
	case errors.Is(err, ErrTokenNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load report")
	}
}
