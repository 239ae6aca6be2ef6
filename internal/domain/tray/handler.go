package tray

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/morgue/morgue/internal/platform/auth"
	"github.com/morgue/morgue/internal/platform/query"
	"github.com/morgue/morgue/pkg/pagination"
)

type Handler struct {
	svc *Service

	// defaultAlertHours is used when no hours query parameter is given.
	defaultAlertHours int
}

func NewHandler(svc *Service, defaultAlertHours int) *Handler {
	return &Handler{svc: svc, defaultAlertHours: defaultAlertHours}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("mortuary", "admissions", "supervisor"))
	read.GET("/trays", h.ListTrays)
	read.GET("/trays/alerts", h.OccupancyAlerts)
	read.GET("/trays/:id", h.GetTray)

	write := api.Group("", auth.RequireRole("mortuary", "supervisor"))
	write.POST("/trays", h.CreateTray)
	write.POST("/trays/:id/assign", h.AssignTray)
	write.POST("/trays/:id/release", h.ReleaseTray)
	write.POST("/trays/:id/maintenance", h.EnterMaintenance)
	write.DELETE("/trays/:id/maintenance", h.ExitMaintenance)
}

func (h *Handler) CreateTray(c echo.Context) error {
	var t Tray
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTray(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTray(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTray(c.Request().Context(), id)
	if errors.Is(err, ErrTrayNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTrays(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTrays(c.Request().Context(), query.ExtractParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AssignTray(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		CaseID uuid.UUID `json:"case_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.AssignTray(c.Request().Context(), id, req.CaseID, actor); err != nil {
		if errors.Is(err, ErrTrayNotAvailable) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReleaseTray(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.ReleaseTray(c.Request().Context(), id, actor); err != nil {
		if errors.Is(err, ErrTrayNotOccupied) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) EnterMaintenance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.EnterMaintenance(c.Request().Context(), id, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrTrayNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrTrayOccupied):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExitMaintenance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ExitMaintenance(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrTrayNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrTrayNotInMaintenance):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) OccupancyAlerts(c echo.Context) error {
	hours, _ := strconv.Atoi(c.QueryParam("hours"))
	if hours <= 0 {
		hours = h.defaultAlertHours
	}
	alerts, err := h.svc.OccupancyAlerts(c.Request().Context(), hours)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, alerts)
}
