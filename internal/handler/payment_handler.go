package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/middleware"
	"github.com/dafibh/cicilan/cicilan-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment ledger HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordPaymentRequest represents the record payment request body.
// The chain fields are optional; a partial payment without them joins the next open installment.
type RecordPaymentRequest struct {
	Amount           string  `json:"amount" example:"600.00"`
	PaymentDate      string  `json:"paymentDate" example:"2025-06-15"`
	Status           string  `json:"status" example:"Partial"`
	CollectedBy      string  `json:"collectedBy,omitempty" example:"field-officer-7"`
	Notes            *string `json:"notes,omitempty"`
	ChainID          *string `json:"chainId,omitempty"`
	InstallmentIndex *int32  `json:"installmentIndex,omitempty" example:"6"`
	DueDate          *string `json:"dueDate,omitempty" example:"2025-06-15"`
	ExpectedAmount   *string `json:"expectedAmount,omitempty" example:"1000.00"`
}

// AdvancePaymentRequest represents the advance batch request body
type AdvancePaymentRequest struct {
	From                 string  `json:"from" example:"2025-01-02"`
	To                   string  `json:"to" example:"2025-01-06"`
	AmountPerInstallment string  `json:"amountPerInstallment" example:"50.00"`
	CollectedBy          string  `json:"collectedBy,omitempty"`
	Notes                *string `json:"notes,omitempty"`
}

// EditPaymentRequest represents the edit payment request body
type EditPaymentRequest struct {
	Amount      string  `json:"amount" example:"1200.00"`
	Status      string  `json:"status" example:"Paid"`
	PaymentDate *string `json:"paymentDate,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// ChainRefResponse places a payment in an installment chain
type ChainRefResponse struct {
	ChainID          string `json:"chainId"`
	InstallmentIndex int32  `json:"installmentIndex"`
	DueDate          string `json:"dueDate"`
	ExpectedAmount   string `json:"expectedAmount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID          int32             `json:"id"`
	LoanID      int32             `json:"loanId"`
	Amount      string            `json:"amount"`
	PaymentDate string            `json:"paymentDate"`
	Status      string            `json:"status"`
	CollectedBy string            `json:"collectedBy"`
	Notes       *string           `json:"notes,omitempty"`
	Chain       *ChainRefResponse `json:"chain,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

// PaymentResultResponse is a payment with the loan aggregates after the change
type PaymentResultResponse struct {
	Payment    PaymentResponse    `json:"payment"`
	Aggregates AggregatesResponse `json:"aggregates"`
}

// AdvanceResultResponse is the outcome of an advance batch
type AdvanceResultResponse struct {
	Payments    []PaymentResponse  `json:"payments"`
	TotalAmount string             `json:"totalAmount"`
	Count       int                `json:"count"`
	Aggregates  AggregatesResponse `json:"aggregates"`
}

// DeleteResultResponse is the outcome of a delete
type DeleteResultResponse struct {
	DeletedCount int                `json:"deletedCount"`
	DeletedIDs   []int32            `json:"deletedIds"`
	Aggregates   AggregatesResponse `json:"aggregates"`
}

// ListPayments handles GET /api/v1/loans/:loanId/payments
// @Summary List the payment ledger of a loan
// @Tags payments
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {array} PaymentResponse
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/payments [get]
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	payments, err := h.paymentService.ListPayments(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "list payments", loanFields(workspaceID, loanID))
	}

	return c.JSON(http.StatusOK, toPaymentResponses(payments))
}

// RecordPayment handles POST /api/v1/loans/:loanId/payments
// @Summary Record a payment
// @Description Appends a Paid, Partial or Advance payment and recomputes the loan aggregates
// @Tags payments
// @Accept json
// @Produce json
// @Param loanId path int true "Loan ID"
// @Param request body RecordPaymentRequest true "Payment"
// @Success 201 {object} PaymentResultResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/payments [post]
func (h *PaymentHandler) RecordPayment(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var errs []ValidationError
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		errs = append(errs, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	paymentDate, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		errs = append(errs, ValidationError{Field: "paymentDate", Message: "Must be a date in YYYY-MM-DD format"})
	}
	status, ok := parsePaymentStatus(req.Status)
	if !ok {
		errs = append(errs, ValidationError{Field: "status", Message: "Must be one of Paid, Partial, Advance"})
	}
	hint, hintErrs := parseChainHint(req)
	errs = append(errs, hintErrs...)
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	result, err := h.paymentService.RecordPayment(c.Request().Context(), workspaceID, loanID, service.RecordPaymentInput{
		Amount:      amount,
		PaymentDate: paymentDate,
		Status:      status,
		CollectedBy: collector(c, req.CollectedBy),
		Notes:       req.Notes,
		Chain:       hint,
	})
	if err != nil {
		return respondLedgerError(c, err, "record payment", loanFields(workspaceID, loanID))
	}

	return c.JSON(http.StatusCreated, PaymentResultResponse{
		Payment:    toPaymentResponse(result.Payment),
		Aggregates: toAggregatesResponse(result.Aggregates),
	})
}

// RecordAdvancePayments handles POST /api/v1/loans/:loanId/payments/advance
// @Summary Pre-pay installments in a date range
// @Description Creates one Advance payment per installment due in [from, to]; all or nothing
// @Tags payments
// @Accept json
// @Produce json
// @Param loanId path int true "Loan ID"
// @Param request body AdvancePaymentRequest true "Advance batch"
// @Success 201 {object} AdvanceResultResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/payments/advance [post]
func (h *PaymentHandler) RecordAdvancePayments(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req AdvancePaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var errs []ValidationError
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		errs = append(errs, ValidationError{Field: "from", Message: "Must be a date in YYYY-MM-DD format"})
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		errs = append(errs, ValidationError{Field: "to", Message: "Must be a date in YYYY-MM-DD format"})
	}
	amount, err := decimal.NewFromString(req.AmountPerInstallment)
	if err != nil {
		errs = append(errs, ValidationError{Field: "amountPerInstallment", Message: "Must be a valid decimal number"})
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	result, err := h.paymentService.RecordAdvancePayments(c.Request().Context(), workspaceID, loanID, service.AdvanceInput{
		From:                 from,
		To:                   to,
		AmountPerInstallment: amount,
		CollectedBy:          collector(c, req.CollectedBy),
		Notes:                req.Notes,
	})
	if err != nil {
		return respondLedgerError(c, err, "record advance payments", loanFields(workspaceID, loanID))
	}

	return c.JSON(http.StatusCreated, AdvanceResultResponse{
		Payments:    toPaymentResponses(result.Payments),
		TotalAmount: result.TotalAmount.StringFixed(2),
		Count:       result.Count,
		Aggregates:  toAggregatesResponse(result.Aggregates),
	})
}

// EditPayment handles PATCH /api/v1/payments/:paymentId
// @Summary Correct a payment
// @Description Updates amount, status, date or notes; the previous values are kept in the audit trail
// @Tags payments
// @Accept json
// @Produce json
// @Param paymentId path int true "Payment ID"
// @Param request body EditPaymentRequest true "Corrected values"
// @Success 200 {object} PaymentResultResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /payments/{paymentId} [patch]
func (h *PaymentHandler) EditPayment(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	paymentID, err := parseIDParam(c, "paymentId")
	if err != nil {
		return NewValidationError(c, "Invalid payment ID", nil)
	}

	var req EditPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var errs []ValidationError
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		errs = append(errs, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	status, ok := parsePaymentStatus(req.Status)
	if !ok {
		errs = append(errs, ValidationError{Field: "status", Message: "Must be one of Paid, Partial, Advance"})
	}
	var paymentDate *time.Time
	if req.PaymentDate != nil {
		d, err := time.Parse(dateLayout, *req.PaymentDate)
		if err != nil {
			errs = append(errs, ValidationError{Field: "paymentDate", Message: "Must be a date in YYYY-MM-DD format"})
		}
		paymentDate = &d
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	result, err := h.paymentService.EditPayment(c.Request().Context(), workspaceID, paymentID, service.EditPaymentInput{
		Amount:      amount,
		Status:      status,
		PaymentDate: paymentDate,
		Notes:       req.Notes,
		Actor:       middleware.GetAuth0ID(c),
	})
	if err != nil {
		return respondLedgerError(c, err, "edit payment", paymentFields(workspaceID, paymentID))
	}

	log.Info().Int32("workspace_id", workspaceID).Int32("payment_id", paymentID).Msg("Payment edited")

	return c.JSON(http.StatusOK, PaymentResultResponse{
		Payment:    toPaymentResponse(result.Payment),
		Aggregates: toAggregatesResponse(result.Aggregates),
	})
}

// DeletePayment handles DELETE /api/v1/payments/:paymentId
// @Summary Delete a payment
// @Description With deleteChain=true every member of the payment's installment chain is removed
// @Tags payments
// @Produce json
// @Param paymentId path int true "Payment ID"
// @Param deleteChain query bool false "Delete the whole chain"
// @Success 200 {object} DeleteResultResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /payments/{paymentId} [delete]
func (h *PaymentHandler) DeletePayment(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	paymentID, err := parseIDParam(c, "paymentId")
	if err != nil {
		return NewValidationError(c, "Invalid payment ID", nil)
	}

	deleteChain := false
	if v := c.QueryParam("deleteChain"); v != "" {
		deleteChain, err = strconv.ParseBool(v)
		if err != nil {
			return NewValidationError(c, "Invalid deleteChain", []ValidationError{
				{Field: "deleteChain", Message: "Must be true or false"},
			})
		}
	}

	result, err := h.paymentService.DeletePayment(c.Request().Context(), workspaceID, paymentID, deleteChain, middleware.GetAuth0ID(c))
	if err != nil {
		return respondLedgerError(c, err, "delete payment", paymentFields(workspaceID, paymentID))
	}

	log.Info().
		Int32("workspace_id", workspaceID).
		Int32("payment_id", paymentID).
		Bool("delete_chain", deleteChain).
		Int("deleted_count", result.DeletedCount).
		Msg("Payment deleted")

	return c.JSON(http.StatusOK, DeleteResultResponse{
		DeletedCount: result.DeletedCount,
		DeletedIDs:   result.DeletedIDs,
		Aggregates:   toAggregatesResponse(result.Aggregates),
	})
}

func paymentFields(workspaceID, paymentID int32) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Int32("workspace_id", workspaceID).Int32("payment_id", paymentID)
	}
}

// collector falls back to the authenticated operator when no collector is named
func collector(c echo.Context, named string) string {
	if named = strings.TrimSpace(named); named != "" {
		return named
	}
	return middleware.GetAuth0ID(c)
}

func parsePaymentStatus(s string) (domain.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return domain.PaymentStatusPaid, true
	case "partial":
		return domain.PaymentStatusPartial, true
	case "advance":
		return domain.PaymentStatusAdvance, true
	}
	return "", false
}

func parseChainHint(req RecordPaymentRequest) (*service.ChainHint, []ValidationError) {
	if req.ChainID == nil && req.InstallmentIndex == nil {
		if req.DueDate != nil || req.ExpectedAmount != nil {
			return nil, []ValidationError{{Field: "installmentIndex", Message: "Required when dueDate or expectedAmount is given"}}
		}
		return nil, nil
	}

	var errs []ValidationError
	hint := &service.ChainHint{}
	if req.ChainID != nil {
		id, err := uuid.Parse(*req.ChainID)
		if err != nil {
			errs = append(errs, ValidationError{Field: "chainId", Message: "Must be a UUID"})
		}
		hint.ChainID = &id
	}
	if req.InstallmentIndex != nil {
		if *req.InstallmentIndex < 1 {
			errs = append(errs, ValidationError{Field: "installmentIndex", Message: "Must be at least 1"})
		}
		hint.InstallmentIndex = *req.InstallmentIndex
	}
	if req.DueDate != nil {
		d, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			errs = append(errs, ValidationError{Field: "dueDate", Message: "Must be a date in YYYY-MM-DD format"})
		}
		hint.DueDate = &d
	}
	if req.ExpectedAmount != nil {
		a, err := decimal.NewFromString(*req.ExpectedAmount)
		if err != nil {
			errs = append(errs, ValidationError{Field: "expectedAmount", Message: "Must be a valid decimal number"})
		}
		hint.ExpectedAmount = &a
	}
	return hint, errs
}

// Helper function to convert domain.Payment to PaymentResponse
func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID,
		LoanID:      p.LoanID,
		Amount:      p.Amount.StringFixed(2),
		PaymentDate: formatDate(p.PaymentDate),
		Status:      string(p.Status),
		CollectedBy: p.CollectedBy,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Chain != nil {
		resp.Chain = &ChainRefResponse{
			ChainID:          p.Chain.ChainID.String(),
			InstallmentIndex: p.Chain.InstallmentIndex,
			DueDate:          formatDate(p.Chain.DueDate),
			ExpectedAmount:   p.Chain.ExpectedAmount.StringFixed(2),
		}
	}
	return resp
}

func toPaymentResponses(payments []*domain.Payment) []PaymentResponse {
	response := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		response[i] = toPaymentResponse(p)
	}
	return response
}
