package repository

import (
	"context"
	"database/sql"
	"time"
)

// CommentRepo owns the `comments` table. Comments are plain text,
// attached to a document, and never edited after posting.
type CommentRepo struct {
	db *sql.DB
}

// NewCommentRepo returns a new CommentRepo bound to the given database.
func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{db: db} }

// Comment is one posted comment joined with the author's username.
type Comment struct {
	ID        uint64    `json:"id"`
	PDFID     uint64    `json:"pdf_id"`
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Add posts a comment and returns its generated id.
func (r *CommentRepo) Add(ctx context.Context, pdfID, userID uint64, text string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO comments (pdf_id, user_id, comment) VALUES (?,?,?)",
		pdfID, userID, text)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListByPDF returns a document's comments newest-first with author
// usernames.
func (r *CommentRepo) ListByPDF(ctx context.Context, pdfID uint64) ([]Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.pdf_id, c.user_id, u.username, c.comment, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.pdf_id = ?
		 ORDER BY c.created_at DESC`, pdfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PDFID, &c.UserID, &c.Username, &c.Comment, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
