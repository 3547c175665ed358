package repository

import (
	"context"
	"database/sql"

	"github.com/Nairasmine/backend/internal/model"
)

// WithdrawalRepo owns the `withdrawals` table. Rows are created
// pending and make exactly one transition, to paid or declined. The
// terminal transition is guarded in SQL (WHERE status='pending') so a
// settled row can never be mutated, whatever the caller believes the
// current status to be.
type WithdrawalRepo struct {
	db *sql.DB
}

// NewWithdrawalRepo returns a new WithdrawalRepo bound to the given database.
func NewWithdrawalRepo(db *sql.DB) *WithdrawalRepo { return &WithdrawalRepo{db: db} }

const withdrawalCols = `id, user_id, bank_name, account_number, account_name,
	amount_kobo, status, requested_at, processed_at`

func scanWithdrawal(scan func(dest ...interface{}) error) (model.Withdrawal, error) {
	var w model.Withdrawal
	var processed sql.NullTime
	err := scan(&w.ID, &w.UserID, &w.BankName, &w.AccountNumber, &w.AccountName,
		&w.AmountKobo, &w.Status, &w.RequestedAt, &processed)
	if err != nil {
		return model.Withdrawal{}, err
	}
	if processed.Valid {
		t := processed.Time
		w.ProcessedAt = &t
	}
	return w, nil
}

// HasPending reports whether the user already has a pending request.
// Only one is allowed at a time; otherwise several small requests
// could race a single balance read.
func (r *WithdrawalRepo) HasPending(ctx context.Context, userID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM withdrawals WHERE user_id=? AND status='pending'",
		userID).Scan(&n)
	return n > 0, err
}

// Create inserts a pending payout request and returns it with the
// generated id and requested_at populated.
func (r *WithdrawalRepo) Create(ctx context.Context, w *model.Withdrawal) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO withdrawals (user_id, bank_name, account_number, account_name, amount_kobo)
		 VALUES (?,?,?,?,?)`,
		w.UserID, w.BankName, w.AccountNumber, w.AccountName, w.AmountKobo)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	w.Status = model.WithdrawalPending
	return r.db.QueryRowContext(ctx,
		"SELECT requested_at FROM withdrawals WHERE id=?", w.ID).Scan(&w.RequestedAt)
}

// GetByID returns a single withdrawal, or sql.ErrNoRows.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uint64) (model.Withdrawal, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+withdrawalCols+" FROM withdrawals WHERE id=? LIMIT 1", id)
	return scanWithdrawal(row.Scan)
}

// UpdateStatus performs the terminal transition. newStatus must be
// paid or declined; anything else is ErrInvalidState. The UPDATE is
// restricted to pending rows, so when zero rows are affected the row
// either does not exist (sql.ErrNoRows) or has already settled
// (ErrInvalidState) — the follow-up lookup distinguishes the two.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, id uint64, newStatus string) (model.Withdrawal, error) {
	if newStatus != model.WithdrawalPaid && newStatus != model.WithdrawalDeclined {
		return model.Withdrawal{}, ErrInvalidState
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE withdrawals SET status=?, processed_at=NOW() WHERE id=? AND status='pending'",
		newStatus, id)
	if err != nil {
		return model.Withdrawal{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Withdrawal{}, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Withdrawal{}, err // sql.ErrNoRows: no such withdrawal
		}
		return model.Withdrawal{}, ErrInvalidState
	}
	return r.GetByID(ctx, id)
}

// AdminDetail is a withdrawal joined with requester identity and a
// live earnings computation, for administrative review.
type AdminDetail struct {
	model.Withdrawal
	Username      string `json:"username"`
	Email         string `json:"email"`
	TotalKobo     int64  `json:"total_earnings_kobo"`
	WithdrawnKobo int64  `json:"withdrawn_kobo"`
	AvailableKobo int64  `json:"available_balance_kobo"`
}

// List returns withdrawals newest-first, optionally filtered by
// status, each joined with the requester's live earnings figures.
// This is the admin review projection from the original system: the
// earnings subqueries mirror the EarningsRepo aggregates.
func (r *WithdrawalRepo) List(ctx context.Context, status string) ([]AdminDetail, error) {
	q := `SELECT w.id, w.user_id, w.bank_name, w.account_number, w.account_name,
			w.amount_kobo, w.status, w.requested_at, w.processed_at,
			u.username, u.email,
			(
				(SELECT COALESCE(COUNT(dh.id), 0) * 100
				 FROM download_history dh
				 JOIN pdfs p ON dh.pdf_id = p.id
				 WHERE p.user_id = u.id AND p.is_paid = 0 AND p.status = 'active')
				+
				(SELECT COALESCE(SUM(pur.amount_kobo), 0)
				 FROM purchases pur
				 JOIN pdfs pdf ON pur.pdf_id = pdf.id
				 WHERE pdf.user_id = u.id AND pur.transaction_type = 'pdf_purchase'
				   AND pur.status = 'completed' AND pdf.status = 'active')
			) AS total_kobo,
			(SELECT COALESCE(SUM(amount_kobo), 0)
			 FROM withdrawals
			 WHERE user_id = u.id AND status IN ('pending','paid')) AS withdrawn_kobo
		 FROM withdrawals w
		 JOIN users u ON w.user_id = u.id`
	args := make([]interface{}, 0, 1)
	if status != "" {
		q += " WHERE w.status = ?"
		args = append(args, status)
	}
	q += " ORDER BY w.requested_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminDetail, 0)
	for rows.Next() {
		var d AdminDetail
		var processed sql.NullTime
		if err := rows.Scan(&d.ID, &d.UserID, &d.BankName, &d.AccountNumber, &d.AccountName,
			&d.AmountKobo, &d.Status, &d.RequestedAt, &processed,
			&d.Username, &d.Email, &d.TotalKobo, &d.WithdrawnKobo); err != nil {
			return nil, err
		}
		if processed.Valid {
			t := processed.Time
			d.ProcessedAt = &t
		}
		d.AvailableKobo = d.TotalKobo - d.WithdrawnKobo
		out = append(out, d)
	}
	return out, rows.Err()
}
