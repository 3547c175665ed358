package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Nairasmine/backend/internal/model"
)

// PDFRepo provides CRUD operations for documents. The binary
// payload and cover photo live in the same table but are only
// selected by the download and cover endpoints; list and detail
// queries never touch the LONGBLOB columns. Deleted documents are
// soft-deleted (status='deleted') and excluded from every query
// here, which also keeps them out of all monetization aggregates.
type PDFRepo struct {
	db *sql.DB
}

// NewPDFRepo returns a new PDFRepo bound to the given database.
func NewPDFRepo(db *sql.DB) *PDFRepo { return &PDFRepo{db: db} }

// DB exposes the underlying handle so handlers can scope
// transactions across repositories.
func (r *PDFRepo) DB() *sql.DB { return r.db }

// CreateParams carries everything needed to insert a document.
// PriceKobo must already be the final (surcharged) price.
type CreateParams struct {
	Title       string
	Description string
	FileName    string
	FileSize    int64
	MimeType    string
	UserID      uint64
	Visibility  string
	Tags        string
	IsPaid      bool
	PriceKobo   int64
	PDFData     []byte
	CoverPhoto  []byte
}

// Create inserts a new document and returns its generated id.
func (r *PDFRepo) Create(ctx context.Context, p CreateParams) (uint64, error) {
	var cover interface{}
	if len(p.CoverPhoto) > 0 {
		cover = p.CoverPhoto
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO pdfs (title, description, file_name, file_size, mime_type,
			cover_photo, pdf_data, user_id, visibility, tags, is_paid, price_kobo)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Title, p.Description, p.FileName, p.FileSize, p.MimeType,
		cover, p.PDFData, p.UserID, p.Visibility, p.Tags, p.IsPaid, p.PriceKobo)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const pdfCols = `id, title, description, file_name, file_size, mime_type, user_id,
	download_count, status, visibility, IFNULL(tags,'[]'), is_paid, price_kobo, created_at, updated_at`

func scanPDF(scan func(dest ...interface{}) error) (model.PDF, error) {
	var p model.PDF
	var updated sql.NullTime
	err := scan(&p.ID, &p.Title, &p.Description, &p.FileName, &p.FileSize, &p.MimeType,
		&p.UserID, &p.DownloadCount, &p.Status, &p.Visibility, &p.Tags,
		&p.IsPaid, &p.PriceKobo, &p.CreatedAt, &updated)
	if err != nil {
		return model.PDF{}, err
	}
	if updated.Valid {
		t := updated.Time
		p.UpdatedAt = &t
	}
	return p, nil
}

// GetByID returns an active document's metadata. sql.ErrNoRows is
// returned for unknown or deleted documents.
func (r *PDFRepo) GetByID(ctx context.Context, id uint64) (model.PDF, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+pdfCols+" FROM pdfs WHERE id=? AND status='active' LIMIT 1", id)
	return scanPDF(row.Scan)
}

// UpdateParams carries the mutable metadata of a document. Nil
// pointers leave the corresponding column untouched (COALESCE), the
// same contract the original update endpoint exposes. IsPaid and
// PriceKobo are always written together since the price is only
// meaningful alongside the flag.
type UpdateParams struct {
	Title       *string
	Description *string
	Visibility  *string
	Tags        *string
	IsPaid      bool
	PriceKobo   int64
}

// Update patches an active document owned by ownerID. ErrForbidden is
// returned when the document belongs to someone else, sql.ErrNoRows
// when it does not exist.
func (r *PDFRepo) Update(ctx context.Context, id, ownerID uint64, p UpdateParams) error {
	var actualOwner uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id FROM pdfs WHERE id=? AND status='active' LIMIT 1", id).Scan(&actualOwner)
	if err != nil {
		return err
	}
	if actualOwner != ownerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE pdfs SET
			title = COALESCE(?, title),
			description = COALESCE(?, description),
			visibility = COALESCE(?, visibility),
			tags = COALESCE(?, tags),
			is_paid = ?,
			price_kobo = ?
		 WHERE id=? AND status='active'`,
		p.Title, p.Description, p.Visibility, p.Tags, p.IsPaid, p.PriceKobo, id)
	return err
}

// SoftDelete marks a document deleted. Admins may delete any
// document; owners only their own.
func (r *PDFRepo) SoftDelete(ctx context.Context, id, callerID uint64, isAdmin bool) error {
	var actualOwner uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id FROM pdfs WHERE id=? AND status='active' LIMIT 1", id).Scan(&actualOwner)
	if err != nil {
		return err
	}
	if !isAdmin && actualOwner != callerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, "UPDATE pdfs SET status='deleted' WHERE id=?", id)
	return err
}

// SearchFilters narrows the catalog listing. Zero values are skipped.
type SearchFilters struct {
	Query      string
	UserID     uint64
	Visibility string
	SortBy     string
	Limit      int
	Offset     int
}

// Search returns active documents with aggregate rating and comment
// info, matching the original catalog query. The sort map guards
// against injected ORDER BY expressions.
func (r *PDFRepo) Search(ctx context.Context, f SearchFilters) ([]model.PDF, error) {
	sqlStr := `SELECT ` + pdfCols + ` FROM pdfs WHERE status='active'`
	args := make([]interface{}, 0, 6)
	if f.Query != "" {
		sqlStr += " AND (title LIKE ? OR description LIKE ?)"
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}
	if f.UserID != 0 {
		sqlStr += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Visibility != "" {
		sqlStr += " AND visibility = ?"
		args = append(args, f.Visibility)
	}
	sortMap := map[string]string{
		"newest":    "created_at DESC",
		"oldest":    "created_at ASC",
		"downloads": "download_count DESC",
		"title":     "title ASC",
	}
	order, ok := sortMap[f.SortBy]
	if !ok {
		order = "created_at DESC"
	}
	sqlStr += " ORDER BY " + order
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}
	sqlStr += " LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PDF, 0)
	for rows.Next() {
		p, err := scanPDF(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DownloadData is the subset of columns needed to serve the file
// itself plus the fields the access gate consults.
type DownloadData struct {
	ID        uint64
	FileName  string
	MimeType  string
	IsPaid    bool
	PriceKobo int64
	Data      []byte
}

// GetDownloadData loads the encrypted payload of an active document.
func (r *PDFRepo) GetDownloadData(ctx context.Context, id uint64) (DownloadData, error) {
	var d DownloadData
	err := r.db.QueryRowContext(ctx,
		`SELECT id, file_name, mime_type, is_paid, price_kobo, pdf_data
		 FROM pdfs WHERE id=? AND status='active' LIMIT 1`, id).
		Scan(&d.ID, &d.FileName, &d.MimeType, &d.IsPaid, &d.PriceKobo, &d.Data)
	return d, err
}

// GetCoverPhoto loads the encrypted cover image of an active document.
func (r *PDFRepo) GetCoverPhoto(ctx context.Context, id uint64) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT cover_photo FROM pdfs WHERE id=? AND status='active' LIMIT 1", id).Scan(&data)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

// Rate upserts a 1–5 star rating for (pdf, user).
func (r *PDFRepo) Rate(ctx context.Context, pdfID, userID uint64, rating int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pdf_ratings (pdf_id, user_id, rating) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE rating = VALUES(rating)`,
		pdfID, userID, rating)
	return err
}

// AverageRating returns the mean rating of a document, 0 when unrated.
func (r *PDFRepo) AverageRating(ctx context.Context, pdfID uint64) (float64, error) {
	var avg float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(rating),0) FROM pdf_ratings WHERE pdf_id=?", pdfID).Scan(&avg)
	return avg, err
}

// NormalizeVisibility restricts the column to its enum values,
// defaulting to public.
func NormalizeVisibility(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "private":
		return "private"
	case "paid":
		return "paid"
	default:
		return "public"
	}
}
