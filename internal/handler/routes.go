package handler

import (
	_ "github.com/dafibh/cicilan/cicilan-backend/docs"
	"github.com/dafibh/cicilan/cicilan-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers groups the HTTP handlers served under /api/v1
type Handlers struct {
	Loan      *LoanHandler
	Payment   *PaymentHandler
	Chain     *ChainHandler
	WebSocket *WebSocketHandler
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	// API docs (public)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Change feed authenticates with a query token
	if h.WebSocket != nil {
		e.GET("/ws", h.WebSocket.HandleWS)
	}

	// API version 1
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	if rateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	// Loan routes (protected)
	loans := api.Group("/loans")
	loans.POST("", h.Loan.CreateLoan)
	loans.GET("/:loanId", h.Loan.GetLoan)
	loans.GET("/:loanId/summary", h.Loan.GetSummary)
	loans.POST("/:loanId/recompute", h.Loan.RecomputeLoan)
	loans.GET("/:loanId/audit", h.Loan.GetAudit)
	loans.GET("/:loanId/closure-statement", h.Loan.GetClosureStatement)

	// Payment ledger routes (protected)
	loans.GET("/:loanId/payments", h.Payment.ListPayments)
	loans.POST("/:loanId/payments", h.Payment.RecordPayment)
	loans.POST("/:loanId/payments/advance", h.Payment.RecordAdvancePayments)

	payments := api.Group("/payments")
	payments.PATCH("/:paymentId", h.Payment.EditPayment)
	payments.DELETE("/:paymentId", h.Payment.DeletePayment)

	// Chain routes (protected)
	chains := api.Group("/chains")
	chains.GET("/:chainId", h.Chain.GetChain)
	chains.POST("/:chainId/complete", h.Chain.CompleteChain)
}
