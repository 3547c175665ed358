package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/handler"
	"github.com/Nairasmine/backend/internal/middleware"
)

// RegisterCatalog registers the document catalog. Browse endpoints
// (search, detail, cover) are public so guests can window-shop;
// everything that touches the payload or mutates state requires a
// valid JWT.
func RegisterCatalog(e *echo.Echo, p *handler.PDFHandler, b *handler.BookmarkHandler, cm *handler.CommentHandler, rk *handler.RankingHandler, jwtSecret string) {
	// Public browse endpoints. These are the ones fronted by the
	// response cache.
	e.GET("/v1/pdfs", p.Search)
	e.GET("/v1/pdfs/:id", p.Detail)
	e.GET("/v1/pdfs/:id/cover", p.Cover)

	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("user", "admin"),
	)

	// ---- Documents ----
	g.POST("/pdfs", p.Upload)
	g.PUT("/pdfs/:id", p.Update)
	g.PATCH("/pdfs/:id", p.Update)
	g.DELETE("/pdfs/:id", p.Delete)
	g.GET("/pdfs/:id/download", p.Download)
	g.POST("/pdfs/:id/rate", p.Rate)
	g.GET("/downloads/history", p.History)

	// ---- Bookmarks ----
	g.POST("/pdfs/:id/bookmark", b.Add)
	g.DELETE("/pdfs/:id/bookmark", b.Remove)
	g.GET("/bookmarks", b.List)

	// ---- Comments ----
	g.GET("/pdfs/:id/comments", cm.List)
	g.POST("/pdfs/:id/comment", cm.Add)

	// ---- Rankings ----
	g.GET("/rankings/top-sellers", rk.TopSellers)
	g.GET("/rankings/most-selling-books", rk.MostSelling)
}
