package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/repository"
)

func newTestService(t *testing.T) (*PaymentService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	svc := NewPaymentService(
		repository.NewUserRepo(db),
		repository.NewPDFRepo(db),
		repository.NewPurchaseRepo(db),
		nil, // no broker in tests
	)
	return svc, mock, func() { db.Close() }
}

func userRow(id uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password", "role", "status",
		"upload_fee_paid", "last_withdrawal_at", "last_login", "created_at",
	}).AddRow(id, "ada", "ada@example.com", "x", "user", "active", false, nil, nil, time.Now())
}

func pdfRow(id uint64, isPaid bool, price int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "file_name", "file_size", "mime_type", "user_id",
		"download_count", "status", "visibility", "tags", "is_paid", "price_kobo",
		"created_at", "updated_at",
	}).AddRow(id, "Intro to Go", "", "intro.pdf", 1024, "application/pdf", 2,
		0, "active", "public", "[]", isPaid, price, time.Now(), nil)
}

func purchaseRowFull(id uint64, txID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "pdf_id", "transaction_type", "amount_kobo", "currency",
		"payment_method", "transaction_id", "status", "purchase_date",
		"receipt_pdf", "receipt_image",
	}).AddRow(id, 7, 3, "pdf_purchase", 25_000, "NGN", "card", txID, "completed", time.Now(), nil, nil)
}

func purchaseRowAs(id, userID uint64, pdfID interface{}, txType, txID, status string, amount int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "pdf_id", "transaction_type", "amount_kobo", "currency",
		"payment_method", "transaction_id", "status", "purchase_date",
		"receipt_pdf", "receipt_image",
	}).AddRow(id, userID, pdfID, txType, amount, "NGN", "card", txID, status, time.Now(), nil, nil)
}

func TestRecordPurchaseWritesOnce(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-1001").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("transaction_type='pdf_purchase'").WithArgs(uint64(7), uint64(3)).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").
		WithArgs(uint64(7), uint64(3), "pdf_purchase", int64(25_000), "NGN", "card", "PS-1001", "completed").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery("SELECT purchase_date").WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"purchase_date"}).AddRow(time.Now()))
	mock.ExpectCommit()
	mock.ExpectExec("SET receipt_pdf").WillReturnResult(sqlmock.NewResult(0, 1))

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:        7,
		Product:       PDFProduct(3),
		AmountKobo:    25_000,
		Currency:      "NGN",
		PaymentMethod: "card",
		Reference:     "PS-1001",
		Status:        model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if !created {
		t.Fatal("expected a new ledger row")
	}
	if p.ID != 11 || p.Status != model.PurchaseCompleted {
		t.Fatalf("unexpected purchase %+v", p)
	}
	if len(p.ReceiptPDF) == 0 || len(p.ReceiptImage) == 0 {
		t.Fatal("expected receipt artifacts on a completed purchase")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// A replayed gateway reference returns the original row; no insert,
// no transaction.
func TestRecordPurchaseIdempotentReplay(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-1001").WillReturnRows(purchaseRowFull(11, "PS-1001"))

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    PDFProduct(3),
		AmountKobo: 25_000,
		Reference:  "PS-1001",
		Status:     model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if created {
		t.Fatal("replay must not create a second row")
	}
	if p.ID != 11 {
		t.Fatalf("expected the original row back, got id %d", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// A completed confirmation following a pending row for the same
// reference settles that row; answering with the stale pending row
// would drop the payment.
func TestRecordPurchaseSettlesPendingReference(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-1001").
		WillReturnRows(purchaseRowAs(11, 7, 3, "pdf_purchase", "PS-1001", "pending", 25_000))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE purchases SET status='completed'").WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("SET receipt_pdf").WillReturnResult(sqlmock.NewResult(0, 1))

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    PDFProduct(3),
		AmountKobo: 25_000,
		Reference:  "PS-1001",
		Status:     model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if created {
		t.Fatal("settlement must not report a new row")
	}
	if p.ID != 11 || p.Status != model.PurchaseCompleted {
		t.Fatalf("expected the settled row, got %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// Settling a pending upload fee flips the flag in the same
// transaction, exactly as on first insert.
func TestRecordUploadFeeSettlementFlipsFlag(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("upload-fee-9").
		WillReturnRows(purchaseRowAs(14, 7, nil, "upload_fee", "upload-fee-9", "pending", UploadFeeKobo))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE purchases SET status='completed'").WithArgs(uint64(14)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET upload_fee_paid=1").WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("SET receipt_pdf").WillReturnResult(sqlmock.NewResult(0, 1))

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    UploadFeeProduct(),
		AmountKobo: UploadFeeKobo,
		Reference:  "upload-fee-9",
		Status:     model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if created || p.Status != model.PurchaseCompleted {
		t.Fatalf("unexpected result created=%v purchase=%+v", created, p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// A reference the ledger holds for another payer is rejected, never
// returned as the caller's purchase.
func TestRecordPurchaseRejectsForeignReference(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-2002").
		WillReturnRows(purchaseRowAs(21, 9, 3, "pdf_purchase", "PS-2002", "completed", 25_000))

	_, _, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    PDFProduct(3),
		AmountKobo: 25_000,
		Reference:  "PS-2002",
		Status:     model.PurchaseCompleted,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// Losing the unique-key race is answered with the winner's row.
func TestRecordPurchaseDuplicateRace(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-1001").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("transaction_type='pdf_purchase'").WithArgs(uint64(7), uint64(3)).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'PS-1001' for key 'uniq_transaction'"))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("PS-1001").WillReturnRows(purchaseRowFull(11, "PS-1001"))
	mock.ExpectRollback()

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    PDFProduct(3),
		AmountKobo: 25_000,
		Reference:  "PS-1001",
		Status:     model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if created {
		t.Fatal("losing the race must not report a new row")
	}
	if p.ID != 11 {
		t.Fatalf("expected the winner's row, got id %d", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// The upload-fee flag flips in the same transaction as the insert.
func TestRecordUploadFeeFlipsFlagInTx(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("upload-fee-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("transaction_type='upload_fee'").WithArgs(uint64(7)).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").
		WithArgs(uint64(7), nil, "upload_fee", UploadFeeKobo, "NGN", "card", "upload-fee-1", "completed").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery("SELECT purchase_date").WithArgs(uint64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"purchase_date"}).AddRow(time.Now()))
	mock.ExpectExec("SET upload_fee_paid=1").WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("SET receipt_pdf").WillReturnResult(sqlmock.NewResult(0, 1))

	p, created, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:        7,
		Product:       UploadFeeProduct(),
		AmountKobo:    UploadFeeKobo,
		PaymentMethod: "card",
		Reference:     "upload-fee-1",
		Status:        model.PurchaseCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if !created || p.Type != model.TxUploadFee {
		t.Fatalf("unexpected result created=%v purchase=%+v", created, p)
	}
	if p.PDFID != nil {
		t.Fatal("upload fee must not reference a document")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// When the flag flip fails, the insert rolls back with it: the ledger
// never shows a completed upload fee next to an unset flag.
func TestRecordUploadFeeRollsBackTogether(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).WillReturnRows(userRow(7))
	mock.ExpectQuery("WHERE transaction_id").WithArgs("upload-fee-2").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("transaction_type='upload_fee'").WithArgs(uint64(7)).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").WillReturnResult(sqlmock.NewResult(13, 1))
	mock.ExpectQuery("SELECT purchase_date").WithArgs(uint64(13)).
		WillReturnRows(sqlmock.NewRows([]string{"purchase_date"}).AddRow(time.Now()))
	mock.ExpectExec("SET upload_fee_paid=1").WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, _, err := svc.RecordPurchase(context.Background(), RecordRequest{
		UserID:     7,
		Product:    UploadFeeProduct(),
		AmountKobo: UploadFeeKobo,
		Reference:  "upload-fee-2",
		Status:     model.PurchaseCompleted,
	})
	if err == nil {
		t.Fatal("expected the failure to propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordPurchaseValidation(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	cases := []RecordRequest{
		{UserID: 7, Product: PDFProduct(3), AmountKobo: 0, Reference: "r", Status: model.PurchaseCompleted},
		{UserID: 7, Product: PDFProduct(3), AmountKobo: -5, Reference: "r", Status: model.PurchaseCompleted},
		{UserID: 7, Product: PDFProduct(3), AmountKobo: 100, Reference: "", Status: model.PurchaseCompleted},
		{UserID: 7, Product: PDFProduct(3), AmountKobo: 100, Reference: "r", Status: "settled"},
	}
	for _, req := range cases {
		if _, _, err := svc.RecordPurchase(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Fatalf("req %+v: err = %v, want ErrValidation", req, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("validation must not touch the database: %v", err)
	}
}

func TestCanDownloadFree(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, false, 0))

	gate, err := svc.CanDownload(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if !gate.Allowed {
		t.Fatal("free documents are always allowed")
	}
}

func TestCanDownloadPaidUnpurchased(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("transaction_type='pdf_purchase'").WithArgs(uint64(7), uint64(3)).WillReturnError(sql.ErrNoRows)

	gate, err := svc.CanDownload(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if gate.Allowed {
		t.Fatal("paid document without purchase must be denied")
	}
	if gate.PriceKobo != 25_000 {
		t.Fatalf("denied gate must carry the price, got %d", gate.PriceKobo)
	}
}

func TestCanDownloadPaidPurchased(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	row := sqlmock.NewRows([]string{
		"id", "user_id", "pdf_id", "transaction_type", "amount_kobo", "currency",
		"payment_method", "transaction_id", "status", "purchase_date",
	}).AddRow(11, 7, 3, "pdf_purchase", 25_000, "NGN", "card", "PS-1001", "completed", time.Now())

	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(pdfRow(3, true, 25_000))
	mock.ExpectQuery("transaction_type='pdf_purchase'").WithArgs(uint64(7), uint64(3)).WillReturnRows(row)

	gate, err := svc.CanDownload(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("CanDownload: %v", err)
	}
	if !gate.Allowed {
		t.Fatal("completed purchase must open the gate")
	}
}
