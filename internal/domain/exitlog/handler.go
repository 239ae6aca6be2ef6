package exitlog

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/morgue/morgue/internal/platform/auth"
	"github.com/morgue/morgue/internal/platform/query"
	"github.com/morgue/morgue/pkg/pagination"
)

// Handler exposes the read side of the exit log plus incident
// registration. Exit records themselves are created through the case
// lifecycle, not directly.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("mortuary", "security", "supervisor"))
	g.GET("/exits", h.ListRecords)
	g.GET("/exits/:id", h.GetRecord)
	g.GET("/cases/:id/exit", h.GetByCase)
	g.POST("/exits/:id/incident", h.RegisterIncident)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrExitNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExitExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) GetByCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	e, err := h.svc.GetByCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), query.ExtractParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RegisterIncident(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.RegisterIncident(c.Request().Context(), id, req.Description)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}
