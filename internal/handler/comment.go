package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/repository"
)

const maxCommentLen = 2000

// CommentHandler lets users discuss documents.
type CommentHandler struct {
	Comments *repository.CommentRepo
	PDFs     *repository.PDFRepo
}

func NewCommentHandler(cm *repository.CommentRepo, p *repository.PDFRepo) *CommentHandler {
	if cm == nil || p == nil {
		panic("nil repository passed to NewCommentHandler")
	}
	return &CommentHandler{Comments: cm, PDFs: p}
}

// Add posts a comment on a document.
func (h *CommentHandler) Add(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment is required"})
	}
	if len(req.Comment) > maxCommentLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment too long"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.PDFs.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	commentID, err := h.Comments.Add(ctx, id, uid, req.Comment)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save comment failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": commentID, "pdf_id": id})
}

// List returns a document's comments, newest first.
func (h *CommentHandler) List(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Comments.ListByPDF(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": list})
}
