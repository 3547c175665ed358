package repository

import (
	"context"
	"database/sql"
	"time"
)

// BookmarkRepo owns the `bookmarks` table. A bookmark is unique per
// (user, pdf); re-adding an existing one is a no-op rather than an
// error.
type BookmarkRepo struct {
	db *sql.DB
}

// NewBookmarkRepo returns a new BookmarkRepo bound to the given database.
func NewBookmarkRepo(db *sql.DB) *BookmarkRepo { return &BookmarkRepo{db: db} }

// Add saves a document for the user. Duplicate adds are absorbed by
// the unique key.
func (r *BookmarkRepo) Add(ctx context.Context, userID, pdfID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (user_id, pdf_id) VALUES (?,?)
		 ON DUPLICATE KEY UPDATE pdf_id = pdf_id`,
		userID, pdfID)
	return err
}

// Remove deletes the user's bookmark. sql.ErrNoRows is returned when
// there was nothing to remove.
func (r *BookmarkRepo) Remove(ctx context.Context, userID, pdfID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM bookmarks WHERE user_id=? AND pdf_id=?", userID, pdfID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BookmarkedPDF is a saved document joined with its catalog metadata.
type BookmarkedPDF struct {
	PDFID          uint64    `json:"pdf_id"`
	Title          string    `json:"title"`
	AuthorUsername string    `json:"author_username"`
	IsPaid         bool      `json:"is_paid"`
	PriceKobo      int64     `json:"price_kobo"`
	BookmarkedAt   time.Time `json:"bookmarked_at"`
}

// ListByUser returns the user's bookmarks newest-first. Bookmarks of
// deleted documents are skipped.
func (r *BookmarkRepo) ListByUser(ctx context.Context, userID uint64) ([]BookmarkedPDF, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.pdf_id, p.title, u.username, p.is_paid, p.price_kobo, b.created_at
		 FROM bookmarks b
		 JOIN pdfs p ON p.id = b.pdf_id AND p.status = 'active'
		 JOIN users u ON u.id = p.user_id
		 WHERE b.user_id = ?
		 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookmarkedPDF, 0)
	for rows.Next() {
		var b BookmarkedPDF
		if err := rows.Scan(&b.PDFID, &b.Title, &b.AuthorUsername, &b.IsPaid, &b.PriceKobo, &b.BookmarkedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
