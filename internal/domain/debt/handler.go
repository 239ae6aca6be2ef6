package debt

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/morgue/morgue/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	cashier := api.Group("", auth.RequireRole("cashier", "supervisor"))
	cashier.POST("/cases/:id/financial-debt", h.RegisterFinancialDebt)
	cashier.POST("/cases/:id/financial-debt/none", h.MarkNoFinancialDebt)
	cashier.POST("/cases/:id/financial-debt/payments", h.RecordPayment)
	cashier.POST("/cases/:id/financial-debt/waivers", h.ApplyWaiver)

	bank := api.Group("", auth.RequireRole("bloodbank", "supervisor"))
	bank.POST("/cases/:id/blood-debt", h.RegisterBloodDebt)
	bank.POST("/cases/:id/blood-debt/none", h.MarkNoBloodDebt)
	bank.POST("/cases/:id/blood-debt/returns", h.SettleBloodDebt)

	api.POST("/cases/:id/blood-debt/override", h.OverridePhysician,
		auth.RequireRole("physician"))

	read := api.Group("", auth.RequireRole("cashier", "bloodbank", "mortuary", "supervisor"))
	read.GET("/cases/:id/financial-debt", h.GetFinancialDebt)
	read.GET("/cases/:id/financial-debt/payments", h.ListPayments)
	read.GET("/cases/:id/blood-debt", h.GetBloodDebt)
}

func caseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	return id, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrDebtNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDebtExists), errors.Is(err, ErrAlreadySettled):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) RegisterFinancialDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.RegisterFinancialDebt(c.Request().Context(), id, req.Amount, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) MarkNoFinancialDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.MarkNoFinancialDebt(c.Request().Context(), id, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		ReceiptNumber string `json:"receipt_number"`
		Amount        int64  `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.RecordPayment(c.Request().Context(), id, req.ReceiptNumber, req.Amount, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ApplyWaiver(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Amount        int64  `json:"amount"`
		Justification string `json:"justification"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.ApplyWaiver(c.Request().Context(), id, req.Amount, req.Justification, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetFinancialDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetFinancialDebt(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) RegisterBloodDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Units int `json:"units"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.RegisterBloodDebt(c.Request().Context(), id, req.Units, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) MarkNoBloodDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.MarkNoBloodDebt(c.Request().Context(), id, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SettleBloodDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Units int `json:"units"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.SettleBloodDebt(c.Request().Context(), id, req.Units, actor)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) OverridePhysician(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Justification string `json:"justification"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	physician := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.OverridePhysician(c.Request().Context(), id, physician, req.Justification)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetBloodDebt(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetBloodDebt(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}
