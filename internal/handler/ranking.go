package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/repository"
)

// RankingHandler serves the seller and document leaderboards, derived
// on demand from the purchase ledger, download counts and ratings.
type RankingHandler struct {
	Rankings *repository.RankingRepo
}

func NewRankingHandler(r *repository.RankingRepo) *RankingHandler {
	if r == nil {
		panic("nil repository passed to NewRankingHandler")
	}
	return &RankingHandler{Rankings: r}
}

func rankLimit(c echo.Context) int {
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	return n
}

// TopSellers returns the highest-scoring sellers.
func (h *RankingHandler) TopSellers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.Rankings.TopSellers(ctx, rankLimit(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sellers": list})
}

// MostSelling returns the highest-scoring documents.
func (h *RankingHandler) MostSelling(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.Rankings.MostSelling(ctx, rankLimit(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"books": list})
}
