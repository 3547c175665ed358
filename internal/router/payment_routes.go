package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/handler"
	"github.com/Nairasmine/backend/internal/middleware"
)

// RegisterPayments registers purchase settlement and monetization
// endpoints. All of them require an authenticated user.
func RegisterPayments(e *echo.Echo, pay *handler.PaymentHandler, m *handler.MonetizationHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("user", "admin"),
	)

	// ---- Purchases ----
	g.POST("/payments/verify", pay.VerifyPurchase)
	g.GET("/payments/status/:id", pay.PurchaseStatus)
	g.GET("/payments/history", pay.History)
	g.GET("/payments/receipt/:transaction_id/pdf", pay.ReceiptPDF)
	g.GET("/payments/receipt/:transaction_id/image", pay.ReceiptImage)

	// ---- Upload fee ----
	g.POST("/payments/upload-fee/verify", pay.VerifyUploadFee)
	g.GET("/payments/upload-fee/status", pay.UploadFeeStatus)

	// ---- Monetization ----
	g.GET("/monetization/earnings", m.EarningsDetails)
	g.POST("/monetization/withdraw", m.RequestWithdrawal)
}

// RegisterAdmin registers the payout review endpoints, restricted to
// the admin role.
func RegisterAdmin(e *echo.Echo, w *handler.WithdrawalHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("admin"),
	)
	g.GET("/withdrawals", w.List)
	g.PATCH("/withdrawals/:id", w.UpdateStatus)
}
