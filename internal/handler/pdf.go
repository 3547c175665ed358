package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/model"
	"github.com/Nairasmine/backend/internal/pricing"
	"github.com/Nairasmine/backend/internal/repository"
	"github.com/Nairasmine/backend/internal/service"
	"github.com/Nairasmine/backend/internal/utils"
)

// maxUploadBytes caps the document payload read from a multipart
// upload. Covers are capped separately.
const (
	maxUploadBytes = 50 << 20
	maxCoverBytes  = 5 << 20
)

// PDFHandler bundles everything the catalog endpoints need: document
// and user persistence, the download recorder, the paid-access gate
// and the blob codec that seals payloads at rest.
type PDFHandler struct {
	PDFs      *repository.PDFRepo
	Users     *repository.UserRepo
	Downloads *repository.DownloadRepo
	Payments  *service.PaymentService
	Codec     *utils.BlobCodec
}

func NewPDFHandler(p *repository.PDFRepo, u *repository.UserRepo, d *repository.DownloadRepo, pay *service.PaymentService, codec *utils.BlobCodec) *PDFHandler {
	if p == nil || u == nil || d == nil || pay == nil || codec == nil {
		panic("nil dependency passed to NewPDFHandler")
	}
	return &PDFHandler{PDFs: p, Users: u, Downloads: d, Payments: pay, Codec: codec}
}

// pdfItem is the catalog projection of a document. Tags are stored as
// JSON array text and passed through verbatim.
type pdfItem struct {
	ID            uint64          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	FileName      string          `json:"file_name"`
	FileSize      int64           `json:"file_size"`
	MimeType      string          `json:"mime_type"`
	UserID        uint64          `json:"user_id"`
	DownloadCount uint64          `json:"download_count"`
	Visibility    string          `json:"visibility"`
	Tags          json.RawMessage `json:"tags"`
	IsPaid        bool            `json:"is_paid"`
	PriceKobo     int64           `json:"price_kobo"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toPDFItem(p model.PDF) pdfItem {
	tags := json.RawMessage(p.Tags)
	if !json.Valid(tags) {
		tags = json.RawMessage("[]")
	}
	return pdfItem{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		FileName:      p.FileName,
		FileSize:      p.FileSize,
		MimeType:      p.MimeType,
		UserID:        p.UserID,
		DownloadCount: p.DownloadCount,
		Visibility:    p.Visibility,
		Tags:          tags,
		IsPaid:        p.IsPaid,
		PriceKobo:     p.PriceKobo,
		CreatedAt:     p.CreatedAt,
	}
}

// readFormFile loads one multipart file field with a size cap.
func readFormFile(c echo.Context, field string, cap int64) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	if fh.Size > cap {
		return nil, "", fmt.Errorf("%s exceeds %d bytes", field, cap)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, cap+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > cap {
		return nil, "", fmt.Errorf("%s exceeds %d bytes", field, cap)
	}
	return data, fh.Filename, nil
}

// Upload stores a new document. Only users who have settled the
// upload fee may upload. For paid documents the buyer-facing price is
// the submitted list price plus the platform surcharge, computed here
// once and stored as the final price.
func (h *PDFHandler) Upload(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	feePaid, err := h.Users.UploadFeePaid(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !feePaid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "upload fee not paid"})
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	description := strings.TrimSpace(c.FormValue("description"))
	visibility := repository.NormalizeVisibility(c.FormValue("visibility"))
	tags := strings.TrimSpace(c.FormValue("tags"))
	if tags == "" || !json.Valid([]byte(tags)) {
		tags = "[]"
	}
	isPaid := c.FormValue("is_paid") == "true" || c.FormValue("is_paid") == "1"

	var priceKobo int64
	if isPaid {
		listPrice, err := strconv.ParseInt(c.FormValue("price_kobo"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_kobo required for paid documents"})
		}
		priceKobo, err = pricing.FinalPrice(listPrice)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}

	pdfData, fileName, err := readFormFile(c, "pdf", maxUploadBytes)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pdf file required"})
	}
	mimeType := http.DetectContentType(pdfData)
	if mimeType != "application/pdf" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is not a PDF"})
	}
	fileSize := int64(len(pdfData))

	sealed, err := h.Codec.Seal(pdfData)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store document failed"})
	}
	var sealedCover []byte
	if cover, _, err := readFormFile(c, "cover_photo", maxCoverBytes); err == nil {
		if sealedCover, err = h.Codec.Seal(cover); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store cover failed"})
		}
	}

	id, err := h.PDFs.Create(ctx, repository.CreateParams{
		Title:       title,
		Description: description,
		FileName:    fileName,
		FileSize:    fileSize,
		MimeType:    mimeType,
		UserID:      uid,
		Visibility:  visibility,
		Tags:        tags,
		IsPaid:      isPaid,
		PriceKobo:   priceKobo,
		PDFData:     sealed,
		CoverPhoto:  sealedCover,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create document failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         id,
		"title":      title,
		"is_paid":    isPaid,
		"price_kobo": priceKobo,
	})
}

type updatePDFReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility"`
	Tags        *string `json:"tags"`
	IsPaid      *bool   `json:"is_paid"`
	PriceKobo   *int64  `json:"price_kobo"`
}

// Update patches document metadata. Absent fields keep their current
// values; when the paid flag or the price changes, the surcharge is
// applied again to the submitted list price.
func (h *PDFHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}
	var req updatePDFReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	current, err := h.PDFs.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	isPaid := current.IsPaid
	if req.IsPaid != nil {
		isPaid = *req.IsPaid
	}
	priceKobo := current.PriceKobo
	if !isPaid {
		priceKobo = 0
	} else if req.PriceKobo != nil {
		priceKobo, err = pricing.FinalPrice(*req.PriceKobo)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	} else if priceKobo <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_kobo required for paid documents"})
	}
	if req.Visibility != nil {
		v := repository.NormalizeVisibility(*req.Visibility)
		req.Visibility = &v
	}
	if req.Tags != nil && !json.Valid([]byte(*req.Tags)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tags must be a JSON array"})
	}

	err = h.PDFs.Update(ctx, id, uid, repository.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
		Tags:        req.Tags,
		IsPaid:      isPaid,
		PriceKobo:   priceKobo,
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	updated, err := h.PDFs.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toPDFItem(updated))
}

// Delete soft-deletes a document. Owners may delete their own;
// admins, any. The row stays in the table so past purchases keep
// their reference, but it drops out of search, download and every
// earnings aggregate.
func (h *PDFHandler) Delete(c echo.Context) error {
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

	err = h.PDFs.SoftDelete(ctx, id, uid, isAdmin(c))
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
}

// Search lists active documents for the public catalog.
func (h *PDFHandler) Search(c echo.Context) error {
	var f repository.SearchFilters
	f.Query = strings.TrimSpace(c.QueryParam("q"))
	f.Visibility = strings.TrimSpace(c.QueryParam("visibility"))
	f.SortBy = strings.TrimSpace(c.QueryParam("sort"))
	if v := c.QueryParam("user_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.UserID = n
		}
	}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if f.Offset < 0 {
		f.Offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.PDFs.Search(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	items := make([]pdfItem, 0, len(list))
	for _, p := range list {
		items = append(items, toPDFItem(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"pdfs": items, "count": len(items)})
}

// Detail returns one document with its author and average rating.
func (h *PDFHandler) Detail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.PDFs.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	avg, err := h.PDFs.AverageRating(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	resp := echo.Map{"pdf": toPDFItem(p), "average_rating": avg}
	if author, err := h.Users.GetByID(ctx, p.UserID); err == nil {
		resp["author_username"] = author.Username
	}
	return c.JSON(http.StatusOK, resp)
}

// Cover serves the cover image of a document.
func (h *PDFHandler) Cover(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sealed, err := h.PDFs.GetCoverPhoto(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no cover"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	cover, err := h.Codec.Open(sealed)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "decode cover failed"})
	}
	return c.Blob(http.StatusOK, http.DetectContentType(cover), cover)
}

// Download streams the document payload. The paid-access gate runs
// inside every call: a paid document without a completed purchase
// answers 402 with the current price and nothing else. Served
// downloads are recorded in the history ledger before the bytes go
// out, so the free-download earnings count never exceeds what was
// actually served.
func (h *PDFHandler) Download(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	gate, err := h.Payments.CanDownload(ctx, uid, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !gate.Allowed {
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":      "purchase required",
			"price_kobo": gate.PriceKobo,
		})
	}

	d, err := h.PDFs.GetDownloadData(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	data, err := h.Codec.Open(d.Data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "decode document failed"})
	}

	if err := h.Downloads.Record(ctx, id, uid, c.RealIP(), c.Request().UserAgent()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record download failed"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, d.FileName))
	return c.Blob(http.StatusOK, d.MimeType, data)
}

type rateReq struct {
	Rating int `json:"rating"`
}

// Rate records a 1-5 star rating, one per user per document.
func (h *PDFHandler) Rate(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf id"})
	}
	var req rateReq
	if err := c.Bind(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1-5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.PDFs.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.PDFs.Rate(ctx, id, uid, req.Rating); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save rating failed"})
	}
	avg, err := h.PDFs.AverageRating(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"pdf_id": id, "rating": req.Rating, "average_rating": avg})
}

// History returns the caller's download history.
func (h *PDFHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Downloads.ListByUser(ctx, uid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	type entry struct {
		PDFID        uint64    `json:"pdf_id"`
		Title        string    `json:"title"`
		DownloadedAt time.Time `json:"downloaded_at"`
	}
	out := make([]entry, 0, len(list))
	for _, e := range list {
		out = append(out, entry{PDFID: e.PDFID, Title: e.PDFTitle, DownloadedAt: e.DownloadedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"downloads": out})
}
