package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/repository"
	"github.com/Nairasmine/backend/internal/service"
)

// PaymentHandler exposes purchase settlement: gateway verification
// callbacks, purchase status checks, purchase history and receipt
// downloads.
type PaymentHandler struct {
	Payments  *service.PaymentService
	Purchases *repository.PurchaseRepo
	Users     *repository.UserRepo
}

func NewPaymentHandler(p *service.PaymentService, pr *repository.PurchaseRepo, u *repository.UserRepo) *PaymentHandler {
	if p == nil || pr == nil || u == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p, Purchases: pr, Users: u}
}

type verifyReq struct {
	PDFID         uint64 `json:"pdf_id"`
	AmountKobo    int64  `json:"amount_kobo"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type purchaseResp struct {
	ID            uint64  `json:"id"`
	PDFID         *uint64 `json:"pdf_id,omitempty"`
	Type          string  `json:"transaction_type"`
	AmountKobo    int64   `json:"amount_kobo"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method"`
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	PurchaseDate  string  `json:"purchase_date"`
	HasReceipt    bool    `json:"has_receipt"`
}

func toPurchaseResp(p model.Purchase) purchaseResp {
	return purchaseResp{
		ID:            p.ID,
		PDFID:         p.PDFID,
		Type:          string(p.Type),
		AmountKobo:    p.AmountKobo,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		PurchaseDate:  p.PurchaseDate.UTC().Format(time.RFC3339),
		HasReceipt:    len(p.ReceiptPDF) > 0,
	}
}

// recordErrJSON maps recorder errors onto HTTP responses shared by
// both verification endpoints.
func recordErrJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record payment failed"})
	}
}

// VerifyPurchase records a document purchase confirmed by the payment
// gateway. Replays of the same transaction, and repeat purchases of
// an already-owned document, answer 200 with the original ledger row
// instead of writing a second one.
func (h *PaymentHandler) VerifyPurchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PDFID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pdf_id required"})
	}
	if req.Status == "" {
		req.Status = model.PurchaseCompleted
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	purchase, created, err := h.Payments.RecordPurchase(ctx, service.RecordRequest{
		UserID:        uid,
		Product:       service.PDFProduct(req.PDFID),
		AmountKobo:    req.AmountKobo,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Reference:     strings.TrimSpace(req.TransactionID),
		Status:        req.Status,
	})
	if err != nil {
		return recordErrJSON(c, err)
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, toPurchaseResp(purchase))
}

// VerifyUploadFee settles the one-time upload fee. The amount must be
// exactly the fixed fee; anything else is rejected before the ledger
// is touched.
func (h *PaymentHandler) VerifyUploadFee(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AmountKobo != service.UploadFeeKobo {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("upload fee must be exactly %d kobo", service.UploadFeeKobo),
		})
	}
	if req.Status == "" {
		req.Status = model.PurchaseCompleted
	}
	// Gateways that settle the fee in-app may omit the reference; a
	// generated one keeps the unique-reference invariant intact.
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		req.TransactionID = "upload-fee-" + uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	purchase, created, err := h.Payments.RecordPurchase(ctx, service.RecordRequest{
		UserID:        uid,
		Product:       service.UploadFeeProduct(),
		AmountKobo:    req.AmountKobo,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Reference:     strings.TrimSpace(req.TransactionID),
		Status:        req.Status,
	})
	if err != nil {
		return recordErrJSON(c, err)
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, echo.Map{
		"purchase":        toPurchaseResp(purchase),
		"upload_fee_paid": purchase.Status == model.PurchaseCompleted,
	})
}

// UploadFeeStatus reports whether the caller may upload documents.
func (h *PaymentHandler) UploadFeeStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	paid, err := h.Users.UploadFeePaid(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"upload_fee_paid": paid})
}

// PurchaseStatus reports whether the caller owns a completed purchase
// of the given document.
func (h *PaymentHandler) PurchaseStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pdfID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	purchased, err := h.Payments.HasPurchased(ctx, uid, pdfID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"pdf_id": pdfID, "purchased": purchased})
}

// History returns the caller's purchases (documents and upload fee),
// newest first.
func (h *PaymentHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Purchases.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var totalSpent int64
	for _, p := range list {
		if p.Status == model.PurchaseCompleted {
			totalSpent += p.AmountKobo
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"purchases":        list,
		"total_spent_kobo": totalSpent,
	})
}

// loadOwnReceipt fetches a ledger row by gateway reference and
// enforces that it belongs to the caller (admins may fetch any).
func (h *PaymentHandler) loadOwnReceipt(c echo.Context) (model.Purchase, error) {
	uid, err := getUserID(c)
	if err != nil {
		return model.Purchase{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	ref := strings.TrimSpace(c.Param("transaction_id"))
	if ref == "" {
		return model.Purchase{}, echo.NewHTTPError(http.StatusBadRequest, "transaction_id required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Purchases.GetByTransactionID(ctx, ref)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Purchase{}, echo.NewHTTPError(http.StatusNotFound, "purchase not found")
		}
		return model.Purchase{}, echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if p.UserID != uid && !isAdmin(c) {
		return model.Purchase{}, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return p, nil
}

// ReceiptPDF streams the generated PDF receipt of a purchase.
func (h *PaymentHandler) ReceiptPDF(c echo.Context) error {
	p, err := h.loadOwnReceipt(c)
	if err != nil {
		return err
	}
	if len(p.ReceiptPDF) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no receipt for this purchase"})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, p.TransactionID))
	return c.Blob(http.StatusOK, "application/pdf", p.ReceiptPDF)
}

// ReceiptImage streams the QR receipt image of a purchase.
func (h *PaymentHandler) ReceiptImage(c echo.Context) error {
	p, err := h.loadOwnReceipt(c)
	if err != nil {
		return err
	}
	if len(p.ReceiptImage) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no receipt for this purchase"})
	}
	return c.Blob(http.StatusOK, "image/png", p.ReceiptImage)
}
