package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/repository"
)

// BookmarkHandler lets users save documents for later.
type BookmarkHandler struct {
	Bookmarks *repository.BookmarkRepo
	PDFs      *repository.PDFRepo
}

func NewBookmarkHandler(b *repository.BookmarkRepo, p *repository.PDFRepo) *BookmarkHandler {
	if b == nil || p == nil {
		panic("nil repository passed to NewBookmarkHandler")
	}
	return &BookmarkHandler{Bookmarks: b, PDFs: p}
}

// Add bookmarks a document. Re-adding is a no-op success.
func (h *BookmarkHandler) Add(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.PDFs.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Bookmarks.Add(ctx, uid, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save bookmark failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"pdf_id": id, "bookmarked": true})
}

// Remove deletes a bookmark.
func (h *BookmarkHandler) Remove(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Bookmarks.Remove(ctx, uid, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bookmark not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove bookmark failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns the caller's bookmarks, newest first.
func (h *BookmarkHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Bookmarks.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookmarks": list})
}
