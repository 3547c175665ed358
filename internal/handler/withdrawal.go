package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/repository"
)

// WithdrawalHandler holds the admin-facing payout review endpoints.
type WithdrawalHandler struct {
	Withdrawals *repository.WithdrawalRepo
}

func NewWithdrawalHandler(w *repository.WithdrawalRepo) *WithdrawalHandler {
	if w == nil {
		panic("nil repository passed to NewWithdrawalHandler")
	}
	return &WithdrawalHandler{Withdrawals: w}
}

// List returns payout requests, optionally filtered by ?status=,
// each joined with the requester's live earnings figures.
func (h *WithdrawalHandler) List(c echo.Context) error {
	status := strings.TrimSpace(c.QueryParam("status"))
	switch status {
	case "", model.WithdrawalPending, model.WithdrawalPaid, model.WithdrawalDeclined:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status filter"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.Withdrawals.List(ctx, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"withdrawals": list})
}

type updateWithdrawalReq struct {
	Status string `json:"status"` // paid | declined
}

// UpdateStatus performs the single terminal transition of a payout
// request. A request that has already settled answers 409 and is
// never mutated again; marking one paid keeps the funds reserved,
// declining releases them on the seller's next balance read.
func (h *WithdrawalHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid withdrawal id"})
	}
	var req updateWithdrawalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if req.Status != model.WithdrawalPaid && req.Status != model.WithdrawalDeclined {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be paid or declined"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Withdrawals.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "withdrawal not found"})
		case errors.Is(err, repository.ErrInvalidState):
			return c.JSON(http.StatusConflict, echo.Map{"error": "withdrawal already settled"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}
	return c.JSON(http.StatusOK, w)
}
