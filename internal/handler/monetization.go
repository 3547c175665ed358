package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/repository"
)

// MonetizationHandler exposes the seller-facing earnings view and the
// withdrawal request endpoint.
type MonetizationHandler struct {
	Earnings    *repository.EarningsRepo
	Withdrawals *repository.WithdrawalRepo
	Users       *repository.UserRepo
}

func NewMonetizationHandler(e *repository.EarningsRepo, w *repository.WithdrawalRepo, u *repository.UserRepo) *MonetizationHandler {
	if e == nil || w == nil || u == nil {
		panic("nil dependency passed to NewMonetizationHandler")
	}
	return &MonetizationHandler{Earnings: e, Withdrawals: w, Users: u}
}

// EarningsDetails recomputes and returns the caller's monetization
// figures. Nothing here is read from a stored balance.
func (h *MonetizationHandler) EarningsDetails(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	summary, err := h.Earnings.Summary(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "compute earnings failed"})
	}
	return c.JSON(http.StatusOK, summary)
}

type withdrawReq struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	AmountKobo    int64  `json:"amount_kobo"`
}

// RequestWithdrawal creates a pending payout request. The available
// balance is recomputed immediately before the insert; once created,
// the pending amount reserves funds on every subsequent balance read.
// At most one pending request per user.
func (h *MonetizationHandler) RequestWithdrawal(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req withdrawReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.BankName = strings.TrimSpace(req.BankName)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.AccountName = strings.TrimSpace(req.AccountName)
	if req.AmountKobo <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	if req.BankName == "" || req.AccountNumber == "" || req.AccountName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bank_name/account_number/account_name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	pending, err := h.Withdrawals.HasPending(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if pending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a withdrawal request is already pending"})
	}

	summary, err := h.Earnings.Summary(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "compute earnings failed"})
	}
	if req.AmountKobo > summary.AvailableKobo {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":                  "insufficient balance",
			"available_balance_kobo": summary.AvailableKobo,
		})
	}

	w := model.Withdrawal{
		UserID:        uid,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		AmountKobo:    req.AmountKobo,
	}
	if err := h.Withdrawals.Create(ctx, &w); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create withdrawal failed"})
	}
	// Informational timestamp; the request itself already succeeded.
	if err := h.Users.TouchLastWithdrawal(ctx, uid); err != nil {
		log.Printf("withdrawal: touch last_withdrawal_at failed for user %d: %v", uid, err)
	}

	return c.JSON(http.StatusCreated, w)
}
