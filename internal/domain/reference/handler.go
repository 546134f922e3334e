package reference

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireScope("references", "read"))
	read.GET("/references", h.ListEntries)
	read.GET("/references/:id", h.GetEntry)

	write := api.Group("", auth.RequireScope("references", "write"))
	write.POST("/references", h.CreateEntry)
	write.PUT("/references", h.BatchUpdate)
	write.PUT("/references/:id", h.UpdateEntry)
	// Deleting a catalog entry silently changes how future reports classify;
	// reserved for admins.
	write.DELETE("/references/:id", h.DeleteEntry, auth.RequireRole("admin"))
}

type entryRequest struct {
	Name       string `json:"name"`
	IdealRange string `json:"ideal_range"`
}

func (h *Handler) CreateEntry(c echo.Context) error {
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.CreateEntry(c.Request().Context(), req.Name, req.IdealRange)
	if err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return echo.NewHTTPError(http.StatusConflict, "an entry with this name already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reference entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEntries(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchEntries(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateEntry(c.Request().Context(), id, req.Name, req.IdealRange)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reference entry not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) BatchUpdate(c echo.Context) error {
	var items []BatchItem
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.BatchUpdate(c.Request().Context(), items)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteEntry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
