package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// Both leaderboards read straight from the ledger-adjacent tables;
// the sales signal is restricted to completed pdf_purchase rows.
func TestTopSellersAggregatesCompletedSales(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("GROUP BY u.username").WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"username", "total_downloads", "total_purchases", "average_rating", "score",
		}).
			AddRow("ada", 40, 12, 4.5, 149.5).
			AddRow("ben", 90, 2, 3.0, 115.0))

	list, err := NewRankingRepo(db).TopSellers(context.Background(), 0)
	if err != nil {
		t.Fatalf("TopSellers: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("rows = %d, want 2", len(list))
	}
	// Sales dominate the score: 12 purchases beat 90 downloads.
	if list[0].Username != "ada" || list[0].TotalPurchases != 12 {
		t.Fatalf("unexpected leader %+v", list[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMostSellingIncludesCommentSignal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("comment_count").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "author", "download_count",
			"total_purchases", "average_rating", "comment_count", "score",
		}).AddRow(3, "Intro to Go", "ada", 40, 12, 4.5, 6, 121.0))

	list, err := NewRankingRepo(db).MostSelling(context.Background(), 5)
	if err != nil {
		t.Fatalf("MostSelling: %v", err)
	}
	if len(list) != 1 || list[0].PDFID != 3 || list[0].CommentCount != 6 {
		t.Fatalf("unexpected rows %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// Out-of-range limits are clamped before they reach the database.
func TestRankLimitClamp(t *testing.T) {
	for in, want := range map[int]int{-1: 10, 0: 10, 7: 7, 50: 50, 500: 50} {
		if got := clampRankLimit(in); got != want {
			t.Fatalf("clampRankLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
