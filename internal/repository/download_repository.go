package repository

import (
	"context"
	"database/sql"

	"github.com/Nairasmine/backend/internal/model"
)

// DownloadRepo owns the `download_history` table and the related
// download_count column on pdfs. The history insert and the counter
// increment always happen inside one transaction; a history row
// without a counter bump (or vice versa) would skew free-download
// earnings against the visible counter.
type DownloadRepo struct {
	db *sql.DB
}

// NewDownloadRepo returns a new DownloadRepo bound to the given database.
func NewDownloadRepo(db *sql.DB) *DownloadRepo { return &DownloadRepo{db: db} }

// Record writes one download event: a history row with the document
// title snapshotted at download time, plus the counter increment.
// Commit-on-success, rollback on any error. sql.ErrNoRows is returned
// when the document does not exist or is deleted.
func (r *DownloadRepo) Record(ctx context.Context, pdfID, userID uint64, ip, userAgent string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var title string
	if err := tx.QueryRowContext(ctx,
		"SELECT title FROM pdfs WHERE id=? AND status='active' LIMIT 1", pdfID).Scan(&title); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO download_history (pdf_id, pdf_title, user_id, ip_address, user_agent)
		 VALUES (?,?,?,?,?)`,
		pdfID, title, userID, ip, userAgent); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE pdfs SET download_count = download_count + 1 WHERE id=?", pdfID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByUser returns the user's download history, newest first. The
// snapshotted title is served as-is, so renamed or deleted documents
// still show what the user actually downloaded.
func (r *DownloadRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.DownloadEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pdf_id, pdf_title, user_id, downloaded_at, ip_address, user_agent
		 FROM download_history
		 WHERE user_id = ?
		 ORDER BY downloaded_at DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DownloadEntry, 0)
	for rows.Next() {
		var e model.DownloadEntry
		if err := rows.Scan(&e.ID, &e.PDFID, &e.PDFTitle, &e.UserID,
			&e.DownloadedAt, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
