package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Nairasmine/backend/internal/model"
)

// PurchaseRepo owns the `purchases` ledger table. Rows are written
// once; the only mutations afterwards are the pending-to-completed
// settlement and attaching the generated receipt blobs. All balance
// figures elsewhere in the system are derived from these rows at
// read time.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// DB exposes the underlying handle so the payment service can scope a
// transaction across the purchase insert and the user flag flip.
func (r *PurchaseRepo) DB() *sql.DB { return r.db }

const purchaseCols = `id, user_id, pdf_id, transaction_type, amount_kobo, currency,
	payment_method, transaction_id, status, purchase_date`

func scanPurchase(scan func(dest ...interface{}) error) (model.Purchase, error) {
	var p model.Purchase
	var pdfID sql.NullInt64
	var txType string
	err := scan(&p.ID, &p.UserID, &pdfID, &txType, &p.AmountKobo, &p.Currency,
		&p.PaymentMethod, &p.TransactionID, &p.Status, &p.PurchaseDate)
	if err != nil {
		return model.Purchase{}, err
	}
	if pdfID.Valid {
		id := uint64(pdfID.Int64)
		p.PDFID = &id
	}
	p.Type = model.TransactionType(txType)
	return p, nil
}

// isDuplicateKey reports MySQL error 1062 (duplicate entry for a
// unique key). The mysql driver formats the code into the message.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// CreateTx inserts a ledger row within the scope of an existing
// transaction and populates the generated id and purchase date on the
// provided record. A violation of either unique key (transaction_id,
// or the completed-purchase key) is reported as ErrDuplicatePurchase
// so the caller can fall back to returning the already-recorded row.
// The caller must commit or roll back the transaction.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Purchase) error {
	var pdfID interface{}
	if p.PDFID != nil {
		pdfID = *p.PDFID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (user_id, pdf_id, transaction_type, amount_kobo,
			currency, payment_method, transaction_id, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.UserID, pdfID, string(p.Type), p.AmountKobo,
		p.Currency, p.PaymentMethod, p.TransactionID, p.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicatePurchase
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		"SELECT purchase_date FROM purchases WHERE id=?", p.ID).Scan(&p.PurchaseDate)
}

// SettleTx promotes a previously recorded non-completed row to
// completed within an existing transaction. The transition makes the
// completed-purchase key live, so settling a product the payer has
// already completed under a different reference surfaces as
// ErrDuplicatePurchase.
func (r *PurchaseRepo) SettleTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE purchases SET status='completed' WHERE id=? AND status<>'completed'", id)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicatePurchase
	}
	return err
}

// GetCompletedByUserAndPDF returns the completed ordinary purchase for
// (user, pdf), or sql.ErrNoRows when none exists. This is the
// idempotency lookup and the access-gate query.
func (r *PurchaseRepo) GetCompletedByUserAndPDF(ctx context.Context, userID, pdfID uint64) (model.Purchase, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseCols+` FROM purchases
		 WHERE user_id=? AND pdf_id=? AND transaction_type='pdf_purchase' AND status='completed'
		 LIMIT 1`, userID, pdfID)
	return scanPurchase(row.Scan)
}

// GetCompletedUploadFee returns the user's completed upload-fee row,
// or sql.ErrNoRows.
func (r *PurchaseRepo) GetCompletedUploadFee(ctx context.Context, userID uint64) (model.Purchase, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseCols+` FROM purchases
		 WHERE user_id=? AND transaction_type='upload_fee' AND status='completed'
		 LIMIT 1`, userID)
	return scanPurchase(row.Scan)
}

// GetByTransactionID returns the ledger row for a gateway reference,
// including receipt blobs, or sql.ErrNoRows.
func (r *PurchaseRepo) GetByTransactionID(ctx context.Context, transactionID string) (model.Purchase, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseCols+`, receipt_pdf, receipt_image FROM purchases
		 WHERE transaction_id=? LIMIT 1`, transactionID)
	var p model.Purchase
	var pdfID sql.NullInt64
	var txType string
	err := row.Scan(&p.ID, &p.UserID, &pdfID, &txType, &p.AmountKobo, &p.Currency,
		&p.PaymentMethod, &p.TransactionID, &p.Status, &p.PurchaseDate,
		&p.ReceiptPDF, &p.ReceiptImage)
	if err != nil {
		return model.Purchase{}, err
	}
	if pdfID.Valid {
		id := uint64(pdfID.Int64)
		p.PDFID = &id
	}
	p.Type = model.TransactionType(txType)
	return p, nil
}

// UpdateReceipt attaches the generated receipt artifacts to an
// existing ledger row. This is the only mutation a purchase row ever
// sees after insert.
func (r *PurchaseRepo) UpdateReceipt(ctx context.Context, id uint64, receiptPDF, receiptImage []byte) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE purchases SET receipt_pdf=?, receipt_image=? WHERE id=?",
		receiptPDF, receiptImage, id)
	return err
}

// PurchaseDetail joins a ledger row with document and author info for
// the buyer's purchase history.
type PurchaseDetail struct {
	ID             uint64    `json:"id"`
	PDFID          *uint64   `json:"pdf_id,omitempty"`
	Type           string    `json:"transaction_type"`
	Title          *string   `json:"title,omitempty"`
	AuthorUsername *string   `json:"author_username,omitempty"`
	AmountKobo     int64     `json:"amount_kobo"`
	Currency       string    `json:"currency"`
	PaymentMethod  string    `json:"payment_method"`
	TransactionID  string    `json:"transaction_id"`
	Status         string    `json:"status"`
	PurchaseDate   time.Time `json:"purchase_date"`
}

// ListByUser returns the user's purchases, newest first, with
// document title and author for ordinary purchases. Upload-fee rows
// appear with no document fields.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64) ([]PurchaseDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.pdf_id, p.transaction_type, pdf.title, u.username,
			p.amount_kobo, p.currency, p.payment_method, p.transaction_id, p.status, p.purchase_date
		 FROM purchases p
		 LEFT JOIN pdfs pdf ON pdf.id = p.pdf_id
		 LEFT JOIN users u ON u.id = pdf.user_id
		 WHERE p.user_id = ?
		 ORDER BY p.purchase_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PurchaseDetail, 0)
	for rows.Next() {
		var d PurchaseDetail
		var pdfID sql.NullInt64
		var title, author sql.NullString
		if err := rows.Scan(&d.ID, &pdfID, &d.Type, &title, &author,
			&d.AmountKobo, &d.Currency, &d.PaymentMethod, &d.TransactionID,
			&d.Status, &d.PurchaseDate); err != nil {
			return nil, err
		}
		if pdfID.Valid {
			id := uint64(pdfID.Int64)
			d.PDFID = &id
		}
		if title.Valid {
			t := title.String
			d.Title = &t
		}
		if author.Valid {
			a := author.String
			d.AuthorUsername = &a
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
