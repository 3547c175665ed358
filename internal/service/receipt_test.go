package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/Nairasmine/backend/internal/model"
)

func TestRenderReceipts(t *testing.T) {
	pdfID := uint64(3)
	p := model.Purchase{
		ID:            11,
		UserID:        7,
		PDFID:         &pdfID,
		Type:          model.TxPDFPurchase,
		AmountKobo:    25_000,
		Currency:      "NGN",
		PaymentMethod: "card",
		TransactionID: "PS-1001",
		Status:        model.PurchaseCompleted,
		PurchaseDate:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	receiptPDF, receiptPNG, err := RenderReceipts(p, "ada", "ada@example.com")
	if err != nil {
		t.Fatalf("RenderReceipts: %v", err)
	}
	if !bytes.HasPrefix(receiptPDF, []byte("%PDF")) {
		t.Fatal("receipt document is not a PDF")
	}
	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(receiptPNG, pngMagic) {
		t.Fatal("receipt image is not a PNG")
	}
}

func TestRenderReceiptsUploadFee(t *testing.T) {
	p := model.Purchase{
		ID:            12,
		UserID:        7,
		Type:          model.TxUploadFee,
		AmountKobo:    UploadFeeKobo,
		Currency:      "NGN",
		PaymentMethod: "card",
		TransactionID: "upload-fee-abc",
		Status:        model.PurchaseCompleted,
		PurchaseDate:  time.Now(),
	}

	receiptPDF, receiptPNG, err := RenderReceipts(p, "ada", "ada@example.com")
	if err != nil {
		t.Fatalf("RenderReceipts: %v", err)
	}
	if len(receiptPDF) == 0 || len(receiptPNG) == 0 {
		t.Fatal("expected both artifacts for an upload-fee receipt")
	}
}
