package model

import "time"

// TransactionType distinguishes the two products the ledger knows
// about. Ordinary purchases reference a real document; the upload
// fee is a pseudo-product with no document at all (pdf_id is NULL),
// so there is never a sentinel document id in the ledger.
type TransactionType string

const (
	TxPDFPurchase TransactionType = "pdf_purchase"
	TxUploadFee   TransactionType = "upload_fee"
)

// Purchase status values. Only completed rows count toward earnings
// and toward the paid-download access gate.
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
	PurchaseRefunded  = "refunded"
)

// Purchase is an immutable ledger entry in the `purchases` table.
// Rows are written exactly once per external gateway reference and
// are never updated afterwards except to attach generated receipt
// blobs. Balances are always derived from these rows at read time;
// no running balance is stored anywhere.
type Purchase struct {
	ID            uint64          // purchases.id
	UserID        uint64          // purchases.user_id (payer)
	PDFID         *uint64         // purchases.pdf_id (NULL for upload fee)
	Type          TransactionType // purchases.transaction_type
	AmountKobo    int64           // purchases.amount_kobo
	Currency      string          // purchases.currency
	PaymentMethod string          // purchases.payment_method
	TransactionID string          // purchases.transaction_id (gateway reference)
	Status        string          // purchases.status
	ReceiptPDF    []byte          // purchases.receipt_pdf (nullable blob)
	ReceiptImage  []byte          // purchases.receipt_image (nullable blob)
	PurchaseDate  time.Time       // purchases.purchase_date
}

// Withdrawal is a payout request in the `withdrawals` table.
// Lifecycle: created pending, then exactly one terminal transition
// to paid or declined by an admin. Terminal rows are never mutated.
// Pending and paid rows reserve funds; a decline releases them on
// the next earnings read simply by leaving that status set.
type Withdrawal struct {
	ID            uint64     `json:"id"`
	UserID        uint64     `json:"user_id"`
	BankName      string     `json:"bank_name"`
	AccountNumber string     `json:"account_number"`
	AccountName   string     `json:"account_name"`
	AmountKobo    int64      `json:"amount_kobo"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// Withdrawal status values.
const (
	WithdrawalPending  = "pending"
	WithdrawalPaid     = "paid"
	WithdrawalDeclined = "declined"
)

// EarningsSummary is the derived monetization view for one seller.
// Every field is recomputed from ledger rows on each read.
type EarningsSummary struct {
	FreeDownloads    int64 `json:"free_downloads"`
	FreeEarningsKobo int64 `json:"free_earnings_kobo"`
	PaidEarningsKobo int64 `json:"paid_earnings_kobo"`
	TotalKobo        int64 `json:"total_earnings_kobo"`
	WithdrawnKobo    int64 `json:"withdrawn_kobo"`
	AvailableKobo    int64 `json:"available_balance_kobo"`
}
