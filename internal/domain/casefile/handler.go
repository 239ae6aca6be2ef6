package casefile

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/morgue/morgue/internal/domain/exitlog"
	"github.com/morgue/morgue/internal/platform/auth"
	"github.com/morgue/morgue/internal/platform/query"
	"github.com/morgue/morgue/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/cases", h.DeclareCase, auth.RequireRole("clinical", "physician"))

	read := api.Group("", auth.RequireRole("clinical", "physician", "mortuary", "admissions", "security", "supervisor"))
	read.GET("/cases", h.ListCases)
	read.GET("/cases/:id", h.GetCase)
	read.GET("/cases/:id/tickets", h.CaseTickets)
	read.GET("/tickets/escalated", h.EscalatedTickets)

	clinical := api.Group("", auth.RequireRole("clinical", "supervisor"))
	clinical.POST("/cases/:id/request-pickup", h.RequestPickup)
	clinical.POST("/cases/:id/resubmit-verification", h.ResubmitVerification)

	transport := api.Group("", auth.RequireRole("mortuary", "security", "supervisor"))
	transport.POST("/cases/:id/start-transit", h.StartTransit)
	transport.POST("/cases/:id/arrive", h.ArriveForVerification)

	morgue := api.Group("", auth.RequireRole("mortuary", "supervisor"))
	morgue.POST("/cases/:id/verify-arrival", h.VerifyArrival)
	morgue.POST("/cases/:id/request-correction", h.RequestCorrection)
	morgue.POST("/cases/:id/advance-to-storage", h.AdvanceToStorage)
	morgue.POST("/cases/:id/authorize-release", h.AuthorizeRelease)

	api.POST("/cases/:id/exit", h.RecordExit, auth.RequireRole("security", "mortuary", "supervisor"))
	api.DELETE("/cases/:id", h.DeleteCase, auth.RequireRole("supervisor"))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrCaseNotFound), errors.Is(err, ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotPendingRelease),
		errors.Is(err, ErrDebtsOutstanding), errors.Is(err, ErrLegalAuthorizationIncomplete),
		errors.Is(err, ErrRetrievalIncomplete), errors.Is(err, exitlog.ErrExitExists),
		errors.Is(err, exitlog.ErrInconsistentReference):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) DeclareCase(c echo.Context) error {
	var body Case
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	created, err := h.svc.DeclareCase(c.Request().Context(), &body, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCases(c.Request().Context(), query.ExtractParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCase(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// lifecycle wraps the plain status-advance verbs.
func (h *Handler) lifecycle(c echo.Context, op func(echo.Context, uuid.UUID, string) (*Case, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	cs, err := op(c, id, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) RequestPickup(c echo.Context) error {
	return h.lifecycle(c, func(c echo.Context, id uuid.UUID, actor string) (*Case, error) {
		return h.svc.RequestPickup(c.Request().Context(), id, actor)
	})
}

func (h *Handler) StartTransit(c echo.Context) error {
	return h.lifecycle(c, func(c echo.Context, id uuid.UUID, actor string) (*Case, error) {
		return h.svc.StartTransit(c.Request().Context(), id, actor)
	})
}

func (h *Handler) ArriveForVerification(c echo.Context) error {
	return h.lifecycle(c, func(c echo.Context, id uuid.UUID, actor string) (*Case, error) {
		return h.svc.ArriveForVerification(c.Request().Context(), id, actor)
	})
}

func (h *Handler) ResubmitVerification(c echo.Context) error {
	return h.lifecycle(c, func(c echo.Context, id uuid.UUID, actor string) (*Case, error) {
		return h.svc.ResubmitVerification(c.Request().Context(), id, actor)
	})
}

func (h *Handler) AuthorizeRelease(c echo.Context) error {
	return h.lifecycle(c, func(c echo.Context, id uuid.UUID, actor string) (*Case, error) {
		return h.svc.AuthorizeRelease(c.Request().Context(), id, actor)
	})
}

func (h *Handler) VerifyArrival(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		OK          bool   `json:"ok"`
		Discrepancy string `json:"discrepancy"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	cs, err := h.svc.VerifyArrival(c.Request().Context(), id, req.OK, req.Discrepancy, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) RequestCorrection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Details string `json:"details"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.RequestCorrection(c.Request().Context(), id, req.Details, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) AdvanceToStorage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		TrayID uuid.UUID `json:"tray_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	cs, err := h.svc.AdvanceToStorage(c.Request().Context(), id, req.TrayID, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) RecordExit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var exit exitlog.ExitRecord
	if err := c.Bind(&exit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	cs, err := h.svc.RecordExit(c.Request().Context(), id, &exit, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) CaseTickets(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	tickets, err := h.svc.CaseTickets(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, tickets)
}

func (h *Handler) EscalatedTickets(c echo.Context) error {
	tickets, err := h.svc.EscalatedTickets(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tickets)
}
