package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Nairasmine/backend/internal/model"
)

// receiptData is the payload encoded into the receipt QR code. A
// scanner recovers the full purchase record as JSON.
type receiptData struct {
	TransactionID string  `json:"transactionId"`
	UserID        uint64  `json:"userId"`
	Username      string  `json:"username"`
	CustomerEmail string  `json:"customerEmail"`
	PDFID         *uint64 `json:"pdfId,omitempty"`
	AmountKobo    int64   `json:"amountKobo"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"paymentMethod"`
	PurchaseDate  string  `json:"purchaseDate"`
}

// RenderReceipts produces the two receipt artifacts for a completed
// purchase: a one-page PDF with the purchase details and an embedded
// QR code, and the standalone QR code as a PNG. Both are stored on
// the ledger row as opaque blobs and served back only to the payer.
func RenderReceipts(p model.Purchase, username, email string) (receiptPDF, receiptPNG []byte, err error) {
	data := receiptData{
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		Username:      username,
		CustomerEmail: email,
		PDFID:         p.PDFID,
		AmountKobo:    p.AmountKobo,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		PurchaseDate:  p.PurchaseDate.UTC().Format("2006-01-02 15:04:05"),
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, nil, err
	}
	receiptPNG, err = qrcode.Encode(string(payload), qrcode.High, 256)
	if err != nil {
		return nil, nil, fmt.Errorf("qr encode: %w", err)
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "Receipt", "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Transaction ID: %s", data.TransactionID),
		fmt.Sprintf("User ID: %d", data.UserID),
		fmt.Sprintf("Username: %s", data.Username),
		fmt.Sprintf("Email: %s", data.CustomerEmail),
	}
	if data.PDFID != nil {
		lines = append(lines, fmt.Sprintf("PDF ID: %d", *data.PDFID))
	} else {
		lines = append(lines, "Product: upload fee")
	}
	lines = append(lines,
		fmt.Sprintf("Amount: %d.%02d %s", data.AmountKobo/100, data.AmountKobo%100, data.Currency),
		fmt.Sprintf("Payment Method: %s", data.PaymentMethod),
		fmt.Sprintf("Purchase Date: %s", data.PurchaseDate),
	)
	for _, l := range lines {
		doc.CellFormat(0, 7, l, "", 1, "L", false, 0, "")
	}
	doc.Ln(6)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("receipt-qr", opts, bytes.NewReader(receiptPNG))
	doc.ImageOptions("receipt-qr", 80, doc.GetY(), 50, 50, false, opts, 0, "")
	doc.SetY(doc.GetY() + 54)
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, "Scan the QR code to view full receipt details (in JSON)", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), receiptPNG, nil
}
