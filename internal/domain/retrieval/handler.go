package retrieval

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	g := api.Group("", auth.RequireRole("admissions", "mortuary", "security", "supervisor"))
	g.GET("/retrievals", h.ListAuthorizations)
	g.GET("/retrievals/:id", h.GetAuthorization)
	g.GET("/retrievals/:id/issues", h.ValidationIssues)
	g.GET("/cases/:id/retrieval", h.GetByCase)

	clerk := api.Group("", auth.RequireRole("admissions", "supervisor"))
	clerk.POST("/cases/:id/retrieval", h.CreateAuthorization)
	clerk.PUT("/retrievals/:id", h.UpdateFields)
	clerk.POST("/retrievals/:id/signed", h.MarkFullySigned)
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
	case errors.Is(err, ErrAuthorizationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuthorizationExists), errors.Is(err, ErrIncompleteAuthorization):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) CreateAuthorization(c echo.Context) error {
	caseID, err := parseID(c)
	if err != nil {
		return err
	}
	var a Authorization
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.CaseID = caseID
	actor := auth.UserIDFromContext(c.Request().Context())
	created, err := h.svc.CreateAuthorization(c.Request().Context(), &a, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetAuthorization(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAuthorization(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetByCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetByCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAuthorizations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAuthorizations(c.Request().Context(), query.ExtractParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateFields(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var upd Authorization
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateFields(c.Request().Context(), id, &upd)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) MarkFullySigned(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	uploader := auth.UserIDFromContext(c.Request().Context())
	a, err := h.svc.MarkFullySigned(c.Request().Context(), id, uploader)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ValidationIssues(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAuthorization(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	issues := a.ValidationIssues()
	if issues == nil {
		issues = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"complete":     a.IsComplete(),
		"fully_signed": a.FullySigned(),
		"issues":       issues,
	})
}
