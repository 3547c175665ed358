// Package service holds the purchase-settlement core: the recorder
// that writes ledger rows exactly once per gateway reference, the
// access gate for paid downloads, and the receipt renderer.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/queue"
	"github.com/Nairasmine/backend/internal/repository"
)

// UploadFeeKobo is the fixed price of the upload-permission
// pseudo-product: 500 naira.
const UploadFeeKobo int64 = 50_000

// ErrValidation wraps all invalid-request failures of the recorder so
// handlers can map them to 400 without enumerating causes.
var ErrValidation = errors.New("invalid purchase request")

// Product is the tagged variant identifying what a payment bought:
// either a real document or the upload-fee pseudo-product. There is
// no sentinel document id anywhere; the upload fee simply has no
// document.
type Product struct {
	typ   model.TransactionType
	pdfID uint64
}

// PDFProduct tags an ordinary document purchase.
func PDFProduct(pdfID uint64) Product {
	return Product{typ: model.TxPDFPurchase, pdfID: pdfID}
}

// UploadFeeProduct tags an upload-fee payment.
func UploadFeeProduct() Product {
	return Product{typ: model.TxUploadFee}
}

// RecordRequest carries the gateway confirmation the recorder treats
// as authoritative proof of payment. Reference is the external
// transaction id and must be unique per real transaction.
type RecordRequest struct {
	UserID        uint64
	Product       Product
	AmountKobo    int64
	Currency      string
	PaymentMethod string
	Reference     string
	Status        string
}

// PaymentService is the purchase recorder and access gate. All
// mutations of the purchases table in the whole system go through
// RecordPurchase; nothing else writes ledger rows.
type PaymentService struct {
	Users     *repository.UserRepo
	PDFs      *repository.PDFRepo
	Purchases *repository.PurchaseRepo
	Events    *queue.Publisher
}

// NewPaymentService constructs a PaymentService. Repositories must be
// non-nil; a nil publisher disables event publishing, nothing else.
func NewPaymentService(users *repository.UserRepo, pdfs *repository.PDFRepo, purchases *repository.PurchaseRepo, events *queue.Publisher) *PaymentService {
	if users == nil || pdfs == nil || purchases == nil {
		panic("nil repository passed to NewPaymentService")
	}
	return &PaymentService{Users: users, PDFs: pdfs, Purchases: purchases, Events: events}
}

// RecordPurchase writes one ledger row for a confirmed payment,
// exactly once per gateway reference. The returned bool is false when
// an equivalent completed row already existed and was returned
// instead (idempotent success), or when a pending row for the same
// reference was settled in place by a completed confirmation.
//
// For completed upload-fee payments the users.upload_fee_paid flag is
// flipped in the same transaction as the insert: either both changes
// commit or neither does. A concurrent duplicate submission loses the
// race at the unique constraints and is answered with the row the
// winner wrote.
func (s *PaymentService) RecordPurchase(ctx context.Context, req RecordRequest) (model.Purchase, bool, error) {
	if req.AmountKobo <= 0 {
		return model.Purchase{}, false, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.Reference == "" {
		return model.Purchase{}, false, fmt.Errorf("%w: missing gateway reference", ErrValidation)
	}
	switch req.Status {
	case model.PurchasePending, model.PurchaseCompleted, model.PurchaseFailed, model.PurchaseRefunded:
	default:
		return model.Purchase{}, false, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	if req.Currency == "" {
		req.Currency = "NGN"
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "unknown"
	}

	// The payer must exist; for ordinary purchases the document must
	// be active. Both lookups surface sql.ErrNoRows to the handler.
	user, err := s.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return model.Purchase{}, false, err
	}
	var pdfID *uint64
	if req.Product.typ == model.TxPDFPurchase {
		if req.Product.pdfID == 0 {
			return model.Purchase{}, false, fmt.Errorf("%w: missing pdf id", ErrValidation)
		}
		if _, err := s.PDFs.GetByID(ctx, req.Product.pdfID); err != nil {
			return model.Purchase{}, false, err
		}
		id := req.Product.pdfID
		pdfID = &id
	}

	// Idempotency pre-checks: same reference, or an already-completed
	// purchase of the same product by the same payer. A reference the
	// ledger already holds for another payer is rejected outright. A
	// non-completed row followed by a completed confirmation of the
	// same reference is settled in place: the gateway's final word must
	// land in the ledger, never be answered with the stale row.
	if existing, err := s.Purchases.GetByTransactionID(ctx, req.Reference); err == nil {
		if existing.UserID != req.UserID {
			return model.Purchase{}, false, fmt.Errorf("%w: reference recorded for another user", ErrValidation)
		}
		if existing.Status != model.PurchaseCompleted && req.Status == model.PurchaseCompleted {
			return s.settleReference(ctx, existing, user)
		}
		return existing, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Purchase{}, false, err
	}
	if req.Status == model.PurchaseCompleted {
		existing, err := s.lookupCompleted(ctx, req.UserID, req.Product)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return model.Purchase{}, false, err
		}
	}

	purchase := model.Purchase{
		UserID:        req.UserID,
		PDFID:         pdfID,
		Type:          req.Product.typ,
		AmountKobo:    req.AmountKobo,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.Reference,
		Status:        req.Status,
	}

	tx, err := s.Purchases.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Purchase{}, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.Purchases.CreateTx(ctx, tx, &purchase); err != nil {
		if errors.Is(err, repository.ErrDuplicatePurchase) {
			// Lost a race against a concurrent duplicate; the deferred
			// rollback discards our attempt and the winner's row is
			// returned instead.
			return s.resolveDuplicate(ctx, req)
		}
		return model.Purchase{}, false, err
	}
	if purchase.Type == model.TxUploadFee && purchase.Status == model.PurchaseCompleted {
		if err := s.Users.SetUploadFeePaidTx(ctx, tx, purchase.UserID); err != nil {
			return model.Purchase{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Purchase{}, false, err
	}
	committed = true

	if purchase.Status == model.PurchaseCompleted {
		s.attachReceipts(ctx, &purchase, user.Username, user.Email)
		s.publish(ctx, purchase)
	}
	return purchase, true, nil
}

// settleReference promotes a non-completed ledger row to completed
// once the gateway confirms the same reference. The upload-fee flag
// flip shares the settlement transaction, exactly as on first insert.
// Returns created=false: the row already existed, only its status is
// new.
func (s *PaymentService) settleReference(ctx context.Context, existing model.Purchase, user model.User) (model.Purchase, bool, error) {
	tx, err := s.Purchases.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Purchase{}, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.Purchases.SettleTx(ctx, tx, existing.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicatePurchase) {
			// The payer already completed this product under another
			// reference; that row is the settled answer.
			prod := UploadFeeProduct()
			if existing.Type == model.TxPDFPurchase && existing.PDFID != nil {
				prod = PDFProduct(*existing.PDFID)
			}
			done, err := s.lookupCompleted(ctx, existing.UserID, prod)
			if err != nil {
				return model.Purchase{}, false, err
			}
			return done, false, nil
		}
		return model.Purchase{}, false, err
	}
	if existing.Type == model.TxUploadFee {
		if err := s.Users.SetUploadFeePaidTx(ctx, tx, existing.UserID); err != nil {
			return model.Purchase{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Purchase{}, false, err
	}
	committed = true

	existing.Status = model.PurchaseCompleted
	s.attachReceipts(ctx, &existing, user.Username, user.Email)
	s.publish(ctx, existing)
	return existing, false, nil
}

func (s *PaymentService) lookupCompleted(ctx context.Context, userID uint64, p Product) (model.Purchase, error) {
	if p.typ == model.TxUploadFee {
		return s.Purchases.GetCompletedUploadFee(ctx, userID)
	}
	return s.Purchases.GetCompletedByUserAndPDF(ctx, userID, p.pdfID)
}

// resolveDuplicate fetches the row that beat us to a unique key:
// first by reference, then by completed product. The same ownership
// rule as the pre-check applies; a reference held by another payer is
// never handed out.
func (s *PaymentService) resolveDuplicate(ctx context.Context, req RecordRequest) (model.Purchase, bool, error) {
	if existing, err := s.Purchases.GetByTransactionID(ctx, req.Reference); err == nil {
		if existing.UserID != req.UserID {
			return model.Purchase{}, false, fmt.Errorf("%w: reference recorded for another user", ErrValidation)
		}
		return existing, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Purchase{}, false, err
	}
	existing, err := s.lookupCompleted(ctx, req.UserID, req.Product)
	if err != nil {
		return model.Purchase{}, false, err
	}
	return existing, false, nil
}

// attachReceipts renders and stores the receipt artifacts. A payment
// that is already committed to the ledger must not fail because a
// receipt could not be rendered, so errors are logged and the
// purchase is returned without attachments.
func (s *PaymentService) attachReceipts(ctx context.Context, p *model.Purchase, username, email string) {
	receiptPDF, receiptPNG, err := RenderReceipts(*p, username, email)
	if err != nil {
		log.Printf("receipt: render failed for purchase %d: %v", p.ID, err)
		return
	}
	if err := s.Purchases.UpdateReceipt(ctx, p.ID, receiptPDF, receiptPNG); err != nil {
		log.Printf("receipt: store failed for purchase %d: %v", p.ID, err)
		return
	}
	p.ReceiptPDF = receiptPDF
	p.ReceiptImage = receiptPNG
}

// publish emits the completed-purchase event. The ledger row is
// already committed; the publisher logs its own failures, so a broker
// outage costs the event, never the payment.
func (s *PaymentService) publish(ctx context.Context, p model.Purchase) {
	if s.Events == nil {
		return
	}
	_ = s.Events.PublishPurchaseCompleted(ctx, queue.PurchaseCompletedEvent{
		PurchaseID:    p.ID,
		UserID:        p.UserID,
		PDFID:         p.PDFID,
		Type:          string(p.Type),
		AmountKobo:    p.AmountKobo,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		Reference:     p.TransactionID,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// GateDecision is the access gate's answer for one (user, document)
// pair. PriceKobo is populated only when access is denied, so the
// client can initiate payment at the current price.
type GateDecision struct {
	Allowed   bool  `json:"allowed"`
	PriceKobo int64 `json:"price_kobo,omitempty"`
}

// Decide is the pure gate rule: free documents are always allowed,
// paid ones require a completed purchase.
func Decide(isPaid bool, priceKobo int64, hasPurchased bool) GateDecision {
	if !isPaid || hasPurchased {
		return GateDecision{Allowed: true}
	}
	return GateDecision{Allowed: false, PriceKobo: priceKobo}
}

// CanDownload applies the gate to an active document. It is called
// inside every download request; the decision is never cached or
// issued as a token, so revoked or refunded access takes effect on
// the next call.
func (s *PaymentService) CanDownload(ctx context.Context, userID, pdfID uint64) (GateDecision, error) {
	pdf, err := s.PDFs.GetByID(ctx, pdfID)
	if err != nil {
		return GateDecision{}, err
	}
	if !pdf.IsPaid {
		return Decide(false, 0, false), nil
	}
	_, err = s.Purchases.GetCompletedByUserAndPDF(ctx, userID, pdfID)
	switch {
	case err == nil:
		return Decide(true, pdf.PriceKobo, true), nil
	case errors.Is(err, sql.ErrNoRows):
		return Decide(true, pdf.PriceKobo, false), nil
	default:
		return GateDecision{}, err
	}
}

// HasPurchased reports whether a completed ordinary purchase exists
// for (user, pdf).
func (s *PaymentService) HasPurchased(ctx context.Context, userID, pdfID uint64) (bool, error) {
	_, err := s.Purchases.GetCompletedByUserAndPDF(ctx, userID, pdfID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}
