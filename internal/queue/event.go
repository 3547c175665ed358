// Package queue defines message payloads exchanged over the message broker.
package queue

// PurchaseCompletedEvent is published after a payment is recorded in
// the ledger. It carries enough information for downstream consumers
// to log, notify, or trigger analytics without querying the primary
// database. PDFID is nil for upload-fee payments.
type PurchaseCompletedEvent struct {
	PurchaseID    uint64  `json:"purchase_id"`
	UserID        uint64  `json:"user_id"`
	PDFID         *uint64 `json:"pdf_id,omitempty"`
	Type          string  `json:"transaction_type"`
	AmountKobo    int64   `json:"amount_kobo"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference"`
	CompletedAt   string  `json:"completed_at"`
}
