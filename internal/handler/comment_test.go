package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/repository"
)

func commentContext(t *testing.T, method, body string, pdfID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(pdfID)
	c.Set("user_id", float64(7))
	c.Set("role", "user")
	return c, rec
}

func newCommentHandler(t *testing.T) (*CommentHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	h := NewCommentHandler(repository.NewCommentRepo(db), repository.NewPDFRepo(db))
	return h, mock, func() { db.Close() }
}

func activePDFRow(id uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "file_name", "file_size", "mime_type", "user_id",
		"download_count", "status", "visibility", "tags", "is_paid", "price_kobo",
		"created_at", "updated_at",
	}).AddRow(id, "Intro to Go", "", "intro.pdf", 1024, "application/pdf", 2,
		0, "active", "public", "[]", false, 0, time.Now(), nil)
}

func TestAddCommentStores(t *testing.T) {
	h, mock, done := newCommentHandler(t)
	defer done()

	mock.ExpectQuery("FROM pdfs WHERE id").WithArgs(uint64(3)).WillReturnRows(activePDFRow(3))
	mock.ExpectExec("INSERT INTO comments").
		WithArgs(uint64(3), uint64(7), "solid walkthrough").
		WillReturnResult(sqlmock.NewResult(9, 1))

	c, rec := commentContext(t, http.MethodPost, `{"comment":"solid walkthrough"}`, "3")
	if err := h.Add(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddCommentValidation(t *testing.T) {
	h, mock, done := newCommentHandler(t)
	defer done()

	for _, body := range []string{`{"comment":""}`, `{"comment":"   "}`} {
		c, rec := commentContext(t, http.MethodPost, body, "3")
		if err := h.Add(c); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: code = %d, want 400", body, rec.Code)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("blank comments must not touch the database: %v", err)
	}
}

func TestListCommentsNewestFirst(t *testing.T) {
	h, mock, done := newCommentHandler(t)
	defer done()

	mock.ExpectQuery("FROM comments").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "pdf_id", "user_id", "username", "comment", "created_at",
		}).
			AddRow(9, 3, 7, "ada", "solid walkthrough", time.Now()).
			AddRow(8, 3, 5, "ben", "chapter 2 is gold", time.Now().Add(-time.Hour)))

	c, rec := commentContext(t, http.MethodGet, "", "3")
	if err := h.List(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"username":"ada"`) {
		t.Fatalf("comments should carry author usernames: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
