package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// The canonical scenario: a seller with 3 free downloads and two
// completed sales of 20000 and 30000 kobo has 50300 kobo available.
// A pending withdrawal of 10000 reserves immediately; declining it
// releases the funds on the very next read.
func TestBuildSummary(t *testing.T) {
	s := BuildSummary(3, 50_000, 0)
	if s.FreeEarningsKobo != 300 {
		t.Fatalf("free earnings = %d, want 300", s.FreeEarningsKobo)
	}
	if s.TotalKobo != 50_300 {
		t.Fatalf("total = %d, want 50300", s.TotalKobo)
	}
	if s.AvailableKobo != 50_300 {
		t.Fatalf("available = %d, want 50300", s.AvailableKobo)
	}

	// Pending withdrawal of 10000 kobo reserves funds.
	s = BuildSummary(3, 50_000, 10_000)
	if s.AvailableKobo != 40_300 {
		t.Fatalf("available with pending = %d, want 40300", s.AvailableKobo)
	}
	if s.TotalKobo != 50_300 {
		t.Fatalf("total must not change on withdrawal, got %d", s.TotalKobo)
	}

	// Declined: the row drops out of the withdrawn set, so the input
	// aggregate returns to zero and the balance is restored.
	s = BuildSummary(3, 50_000, 0)
	if s.AvailableKobo != 50_300 {
		t.Fatalf("available after decline = %d, want 50300", s.AvailableKobo)
	}
}

func TestBuildSummaryZero(t *testing.T) {
	s := BuildSummary(0, 0, 0)
	if s.TotalKobo != 0 || s.AvailableKobo != 0 {
		t.Fatalf("empty seller should have zero totals, got %+v", s)
	}
}

func TestSummaryQueriesLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM download_history").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery("FROM purchases").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(50_000))
	mock.ExpectQuery("FROM withdrawals").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(10_000))

	repo := NewEarningsRepo(db)
	s, err := repo.Summary(context.Background(), 7)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.AvailableKobo != 40_300 {
		t.Fatalf("available = %d, want 40300", s.AvailableKobo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
