package model

import "time"

// PDF mirrors a row of the `pdfs` table. The binary payload and
// cover photo are stored gzip-compressed and AES encrypted in
// LONGBLOB columns; repositories only load them for the download
// and cover endpoints. Prices are integer kobo to keep every
// monetization aggregate in exact integer arithmetic.
//
// A paid document carries the buyer-facing final price, i.e. the
// seller's list price plus the platform surcharge computed by the
// pricing package at upload/update time.
type PDF struct {
	ID            uint64     // pdfs.id
	Title         string     // pdfs.title
	Description   string     // pdfs.description
	FileName      string     // pdfs.file_name
	FileSize      int64      // pdfs.file_size
	MimeType      string     // pdfs.mime_type
	UserID        uint64     // pdfs.user_id (uploader)
	DownloadCount uint64     // pdfs.download_count
	Status        string     // pdfs.status ('active'|'deleted')
	Visibility    string     // pdfs.visibility ('public'|'private'|'paid')
	Tags          string     // pdfs.tags (JSON array text)
	IsPaid        bool       // pdfs.is_paid
	PriceKobo     int64      // pdfs.price_kobo (final price, incl. surcharge)
	CreatedAt     time.Time  // pdfs.created_at
	UpdatedAt     *time.Time // pdfs.updated_at (nullable)
}

// PDF lifecycle states. Deleted documents stay in the table but are
// excluded from search, download and every monetization aggregate.
const (
	PDFStatusActive  = "active"
	PDFStatusDeleted = "deleted"
)

// DownloadEntry is one row of `download_history`: one recorded
// download event. The title is denormalized at download time so the
// history survives later renames or deletion of the document.
type DownloadEntry struct {
	ID           uint64    // download_history.id
	PDFID        uint64    // download_history.pdf_id
	PDFTitle     string    // download_history.pdf_title (snapshot)
	UserID       uint64    // download_history.user_id
	DownloadedAt time.Time // download_history.downloaded_at
	IPAddress    string    // download_history.ip_address
	UserAgent    string    // download_history.user_agent
}

// Bookmark maps a user to a saved document. Unique per (user, pdf).
type Bookmark struct {
	ID        uint64    // bookmarks.id
	UserID    uint64    // bookmarks.user_id
	PDFID     uint64    // bookmarks.pdf_id
	CreatedAt time.Time // bookmarks.created_at
}
