package repository

import (
	"context"
	"database/sql"
)

// RankingRepo computes the catalog leaderboards. Both rankings are
// read-only aggregates over the purchase ledger, download counts and
// ratings; nothing is precomputed or stored.
type RankingRepo struct {
	db *sql.DB
}

// NewRankingRepo returns a new RankingRepo bound to the given database.
func NewRankingRepo(db *sql.DB) *RankingRepo { return &RankingRepo{db: db} }

// SellerRank is one row of the top-sellers leaderboard. Score weighs
// completed sales heaviest, then ratings, then raw downloads.
type SellerRank struct {
	Username       string  `json:"username"`
	TotalDownloads int64   `json:"total_downloads"`
	TotalPurchases int64   `json:"total_purchases"`
	AverageRating  float64 `json:"average_rating"`
	Score          float64 `json:"score"`
}

// BookRank is one row of the most-selling-books leaderboard.
type BookRank struct {
	PDFID          uint64  `json:"pdf_id"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	DownloadCount  int64   `json:"download_count"`
	TotalPurchases int64   `json:"total_purchases"`
	AverageRating  float64 `json:"average_rating"`
	CommentCount   int64   `json:"comment_count"`
	Score          float64 `json:"score"`
}

func clampRankLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}

// TopSellers ranks sellers by downloads, completed sales and average
// rating across their active documents.
func (r *RankingRepo) TopSellers(ctx context.Context, limit int) ([]SellerRank, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.username,
			COALESCE(SUM(p.download_count), 0) AS total_downloads,
			COALESCE(SUM(tp.total_purchases), 0) AS total_purchases,
			COALESCE(AVG(pr.average_rating), 0) AS average_rating,
			(COALESCE(SUM(p.download_count), 0)
				+ COALESCE(AVG(pr.average_rating), 0) * 3
				+ COALESCE(SUM(tp.total_purchases), 0) * 8) AS score
		 FROM pdfs p
		 JOIN users u ON p.user_id = u.id
		 LEFT JOIN (
			SELECT pdf_id, COUNT(*) AS total_purchases
			FROM purchases
			WHERE status = 'completed' AND transaction_type = 'pdf_purchase'
			GROUP BY pdf_id
		 ) tp ON p.id = tp.pdf_id
		 LEFT JOIN (
			SELECT pdf_id, AVG(rating) AS average_rating
			FROM pdf_ratings
			GROUP BY pdf_id
		 ) pr ON p.id = pr.pdf_id
		 WHERE p.status = 'active'
		 GROUP BY u.username
		 ORDER BY score DESC
		 LIMIT ?`, clampRankLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SellerRank, 0)
	for rows.Next() {
		var s SellerRank
		if err := rows.Scan(&s.Username, &s.TotalDownloads, &s.TotalPurchases, &s.AverageRating, &s.Score); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MostSelling ranks active documents by downloads, completed sales,
// rating and comment activity.
func (r *RankingRepo) MostSelling(ctx context.Context, limit int) ([]BookRank, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, u.username AS author,
			p.download_count,
			COALESCE(tp.total_purchases, 0) AS total_purchases,
			COALESCE(pr.average_rating, 0) AS average_rating,
			COALESCE(c.comment_count, 0) AS comment_count,
			(p.download_count
				+ COALESCE(pr.average_rating, 0) * 2
				+ COALESCE(tp.total_purchases, 0) * 5
				+ COALESCE(c.comment_count, 0) * 2) AS score
		 FROM pdfs p
		 JOIN users u ON p.user_id = u.id
		 LEFT JOIN (
			SELECT pdf_id, COUNT(*) AS total_purchases
			FROM purchases
			WHERE status = 'completed' AND transaction_type = 'pdf_purchase'
			GROUP BY pdf_id
		 ) tp ON p.id = tp.pdf_id
		 LEFT JOIN (
			SELECT pdf_id, AVG(rating) AS average_rating
			FROM pdf_ratings
			GROUP BY pdf_id
		 ) pr ON p.id = pr.pdf_id
		 LEFT JOIN (
			SELECT pdf_id, COUNT(*) AS comment_count
			FROM comments
			GROUP BY pdf_id
		 ) c ON p.id = c.pdf_id
		 WHERE p.status = 'active'
		 ORDER BY score DESC
		 LIMIT ?`, clampRankLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookRank, 0)
	for rows.Next() {
		var b BookRank
		if err := rows.Scan(&b.PDFID, &b.Title, &b.Author, &b.DownloadCount,
			&b.TotalPurchases, &b.AverageRating, &b.CommentCount, &b.Score); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
