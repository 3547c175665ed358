package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/repository"
)

func withdrawContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/monetization/withdraw", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(7))
	c.Set("role", "user")
	return c, rec
}

func newMonetizationHandler(t *testing.T) (*MonetizationHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	h := NewMonetizationHandler(
		repository.NewEarningsRepo(db),
		repository.NewWithdrawalRepo(db),
		repository.NewUserRepo(db),
	)
	return h, mock, func() { db.Close() }
}

func expectEarnings(mock sqlmock.Sqlmock, free, paid, withdrawn int64) {
	mock.ExpectQuery("FROM download_history").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(free))
	mock.ExpectQuery("FROM purchases").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(paid))
	mock.ExpectQuery("FROM withdrawals").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(withdrawn))
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	h, mock, done := newMonetizationHandler(t)
	defer done()

	mock.ExpectQuery("status='pending'").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	// 3 free downloads + 50000 paid = 50300 available.
	expectEarnings(mock, 3, 50_000, 0)

	c, rec := withdrawContext(t, `{"bank_name":"GTBank","account_number":"0123456789","account_name":"Ada O.","amount_kobo":60000}`)
	if err := h.RequestWithdrawal(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "50300") {
		t.Fatalf("response should carry the available balance: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRequestWithdrawalSecondPendingRejected(t *testing.T) {
	h, mock, done := newMonetizationHandler(t)
	defer done()

	mock.ExpectQuery("status='pending'").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	c, rec := withdrawContext(t, `{"bank_name":"GTBank","account_number":"0123456789","account_name":"Ada O.","amount_kobo":1000}`)
	if err := h.RequestWithdrawal(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestRequestWithdrawalCreatesPending(t *testing.T) {
	h, mock, done := newMonetizationHandler(t)
	defer done()

	mock.ExpectQuery("status='pending'").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	expectEarnings(mock, 3, 50_000, 0)
	mock.ExpectExec("INSERT INTO withdrawals").
		WithArgs(uint64(7), "GTBank", "0123456789", "Ada O.", int64(10_000)).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT requested_at").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"requested_at"}).AddRow(time.Now()))
	mock.ExpectExec("SET last_withdrawal_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := withdrawContext(t, `{"bank_name":"GTBank","account_number":"0123456789","account_name":"Ada O.","amount_kobo":10000}`)
	if err := h.RequestWithdrawal(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"pending"`) {
		t.Fatalf("new withdrawal must be pending: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// The last_withdrawal_at touch is informational; a failure there is
// logged, not surfaced, and the created withdrawal is still returned.
func TestRequestWithdrawalTouchFailureStillCreated(t *testing.T) {
	h, mock, done := newMonetizationHandler(t)
	defer done()

	mock.ExpectQuery("status='pending'").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	expectEarnings(mock, 3, 50_000, 0)
	mock.ExpectExec("INSERT INTO withdrawals").
		WithArgs(uint64(7), "GTBank", "0123456789", "Ada O.", int64(10_000)).
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectQuery("SELECT requested_at").
		WithArgs(uint64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"requested_at"}).AddRow(time.Now()))
	mock.ExpectExec("SET last_withdrawal_at").
		WillReturnError(errors.New("connection lost"))

	c, rec := withdrawContext(t, `{"bank_name":"GTBank","account_number":"0123456789","account_name":"Ada O.","amount_kobo":10000}`)
	if err := h.RequestWithdrawal(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	h, _, done := newMonetizationHandler(t)
	defer done()

	cases := []string{
		`{"bank_name":"GTBank","account_number":"0123456789","account_name":"Ada O.","amount_kobo":0}`,
		`{"bank_name":"","account_number":"0123456789","account_name":"Ada O.","amount_kobo":1000}`,
		`{"bank_name":"GTBank","account_number":"","account_name":"Ada O.","amount_kobo":1000}`,
	}
	for _, body := range cases {
		c, rec := withdrawContext(t, body)
		if err := h.RequestWithdrawal(c); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: code = %d, want 400", body, rec.Code)
		}
	}
}
