package repository

import (
	"context"
	"database/sql"

	"github.com/Nairasmine/backend/internal/model"
)

// FreeDownloadRateKobo is the flat credit a seller earns for every
// recorded download of one of their free documents: 1 naira.
const FreeDownloadRateKobo int64 = 100

// EarningsRepo derives a seller's monetization figures from ledger
// rows. Nothing here is ever cached or stored: every call recomputes
// the aggregates, so the reported balance can never drift from the
// ledger that justifies it.
type EarningsRepo struct {
	db *sql.DB
}

// NewEarningsRepo returns a new EarningsRepo bound to the given database.
func NewEarningsRepo(db *sql.DB) *EarningsRepo { return &EarningsRepo{db: db} }

// FreeDownloads counts download-history rows of the seller's free,
// non-deleted documents.
func (r *EarningsRepo) FreeDownloads(ctx context.Context, sellerID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(COUNT(dh.id), 0)
		 FROM download_history dh
		 JOIN pdfs p ON dh.pdf_id = p.id
		 WHERE p.user_id = ? AND p.is_paid = 0 AND p.status = 'active'`,
		sellerID).Scan(&n)
	return n, err
}

// PaidEarnings sums completed ordinary-purchase amounts over the
// seller's non-deleted documents.
func (r *EarningsRepo) PaidEarnings(ctx context.Context, sellerID uint64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(pur.amount_kobo), 0)
		 FROM purchases pur
		 JOIN pdfs pdf ON pur.pdf_id = pdf.id
		 WHERE pdf.user_id = ? AND pur.transaction_type = 'pdf_purchase'
		   AND pur.status = 'completed' AND pdf.status = 'active'`,
		sellerID).Scan(&sum)
	return sum, err
}

// WithdrawnTotal sums the seller's withdrawals that still reserve
// funds: pending requests reserve pre-emptively, paid ones are gone
// for good. Declined rows drop out of the set, which releases their
// amount on the very next read.
func (r *EarningsRepo) WithdrawnTotal(ctx context.Context, sellerID uint64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_kobo), 0)
		 FROM withdrawals
		 WHERE user_id = ? AND status IN ('pending','paid')`,
		sellerID).Scan(&sum)
	return sum, err
}

// Summary assembles the full earnings view for a seller.
func (r *EarningsRepo) Summary(ctx context.Context, sellerID uint64) (model.EarningsSummary, error) {
	free, err := r.FreeDownloads(ctx, sellerID)
	if err != nil {
		return model.EarningsSummary{}, err
	}
	paid, err := r.PaidEarnings(ctx, sellerID)
	if err != nil {
		return model.EarningsSummary{}, err
	}
	withdrawn, err := r.WithdrawnTotal(ctx, sellerID)
	if err != nil {
		return model.EarningsSummary{}, err
	}
	return BuildSummary(free, paid, withdrawn), nil
}

// BuildSummary folds the three aggregates into the derived figures.
// Split out so the arithmetic is testable without a database.
func BuildSummary(freeDownloads, paidKobo, withdrawnKobo int64) model.EarningsSummary {
	freeEarnings := freeDownloads * FreeDownloadRateKobo
	total := freeEarnings + paidKobo
	return model.EarningsSummary{
		FreeDownloads:    freeDownloads,
		FreeEarningsKobo: freeEarnings,
		PaidEarningsKobo: paidKobo,
		TotalKobo:        total,
		WithdrawnKobo:    withdrawnKobo,
		AvailableKobo:    total - withdrawnKobo,
	}
}
