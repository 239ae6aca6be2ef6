package legalfile

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
	read := api.Group("", auth.RequireRole("admissions", "mortuary", "supervisor"))
	read.GET("/legal-files", h.ListFiles)
	read.GET("/legal-files/overdue", h.OverdueFiles)
	read.GET("/legal-files/:id", h.GetFile)
	read.GET("/cases/:id/legal-file", h.GetFileByCase)

	clerk := api.Group("", auth.RequireRole("admissions", "supervisor"))
	clerk.POST("/legal-files/:id/documents", h.AttachDocument)
	clerk.POST("/legal-files/:id/authorities", h.AddAuthority)
	clerk.POST("/legal-files/:id/submit", h.SubmitForReview)
	clerk.POST("/legal-files/:id/review", h.ReviewByAdmissions)

	api.POST("/legal-files/:id/authorize", h.AuthorizeBySupervisor,
		auth.RequireRole("supervisor"))
}

func fileID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrNotYetValidated),
		errors.Is(err, ErrIncompleteDocuments), errors.Is(err, ErrFileExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) GetFile(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetFile(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) GetFileByCase(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetFileByCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ListFiles(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListFiles(c.Request().Context(), query.ExtractParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AttachDocument(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	var req struct {
		DocType   string `json:"doc_type"`
		Reference string `json:"reference"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	f, err := h.svc.AttachDocument(c.Request().Context(), id, req.DocType, req.Reference, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) SubmitForReview(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	f, err := h.svc.SubmitForReview(c.Request().Context(), id, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ReviewByAdmissions(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	var req struct {
		Approved bool   `json:"approved"`
		Notes    string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	f, err := h.svc.ReviewByAdmissions(c.Request().Context(), id, req.Approved, actor, req.Notes)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) AuthorizeBySupervisor(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	f, err := h.svc.AuthorizeBySupervisor(c.Request().Context(), id, actor, req.Notes)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) AddAuthority(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return err
	}
	var a Authority
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.AddAuthority(c.Request().Context(), id, &a)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) OverdueFiles(c echo.Context) error {
	files, err := h.svc.OverdueFiles(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, files)
}
