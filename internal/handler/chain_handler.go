package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/middleware"
	"github.com/dafibh/cicilan/cicilan-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ChainHandler handles installment chain HTTP requests
type ChainHandler struct {
	paymentService *service.PaymentService
}

// NewChainHandler creates a new ChainHandler
func NewChainHandler(paymentService *service.PaymentService) *ChainHandler {
	return &ChainHandler{paymentService: paymentService}
}

// CompleteChainRequest represents the complete chain request body
type CompleteChainRequest struct {
	Amount      string  `json:"amount" example:"400.00"`
	PaymentDate string  `json:"paymentDate" example:"2025-06-20"`
	CollectedBy string  `json:"collectedBy,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// ChainResponse represents an installment chain with its members
type ChainResponse struct {
	ChainID          string            `json:"chainId"`
	LoanID           int32             `json:"loanId"`
	InstallmentIndex int32             `json:"installmentIndex"`
	DueDate          string            `json:"dueDate"`
	ExpectedAmount   string            `json:"expectedAmount"`
	Total            string            `json:"total"`
	IsComplete       bool              `json:"isComplete"`
	Members          []PaymentResponse `json:"members"`
}

// ChainCompletionResponse is the outcome of a chain completion
type ChainCompletionResponse struct {
	Payment         PaymentResponse    `json:"payment"`
	ChainTotal      string             `json:"chainTotal"`
	IsChainComplete bool               `json:"isChainComplete"`
	Aggregates      AggregatesResponse `json:"aggregates"`
}

// GetChain handles GET /api/v1/chains/:chainId
// @Summary Get an installment chain
// @Tags chains
// @Produce json
// @Param chainId path string true "Chain ID"
// @Success 200 {object} ChainResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /chains/{chainId} [get]
func (h *ChainHandler) GetChain(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	chainID, err := uuid.Parse(c.Param("chainId"))
	if err != nil {
		return NewValidationError(c, "Invalid chain ID", nil)
	}

	chain, err := h.paymentService.GetChain(c.Request().Context(), workspaceID, chainID)
	if err != nil {
		return respondLedgerError(c, err, "get chain", chainFields(workspaceID, chainID))
	}

	return c.JSON(http.StatusOK, toChainResponse(chain))
}

// CompleteChain handles POST /api/v1/chains/:chainId/complete
// @Summary Complete a partially paid installment
// @Description Appends a Paid member to a chain anchored by a Partial payment. Under- and overpayment are accepted.
// @Tags chains
// @Accept json
// @Produce json
// @Param chainId path string true "Chain ID"
// @Param request body CompleteChainRequest true "Top-up payment"
// @Success 201 {object} ChainCompletionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Security BearerAuth
// @Router /chains/{chainId}/complete [post]
func (h *ChainHandler) CompleteChain(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	chainID, err := uuid.Parse(c.Param("chainId"))
	if err != nil {
		return NewValidationError(c, "Invalid chain ID", nil)
	}

	var req CompleteChainRequest
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
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	result, err := h.paymentService.CompleteChain(c.Request().Context(), workspaceID, chainID, service.CompleteChainInput{
		Amount:      amount,
		PaymentDate: paymentDate,
		CollectedBy: collector(c, req.CollectedBy),
		Notes:       req.Notes,
	})
	if err != nil {
		return respondLedgerError(c, err, "complete chain", chainFields(workspaceID, chainID))
	}

	return c.JSON(http.StatusCreated, ChainCompletionResponse{
		Payment:         toPaymentResponse(result.Payment),
		ChainTotal:      result.ChainTotal.StringFixed(2),
		IsChainComplete: result.IsChainComplete,
		Aggregates:      toAggregatesResponse(result.Aggregates),
	})
}

func chainFields(workspaceID int32, chainID uuid.UUID) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Int32("workspace_id", workspaceID).Str("chain_id", chainID.String())
	}
}

func toChainResponse(chain *domain.Chain) ChainResponse {
	return ChainResponse{
		ChainID:          chain.ID.String(),
		LoanID:           chain.LoanID,
		InstallmentIndex: chain.InstallmentIndex,
		DueDate:          formatDate(chain.DueDate),
		ExpectedAmount:   chain.ExpectedAmount.StringFixed(2),
		Total:            chain.Total().StringFixed(2),
		IsComplete:       chain.IsComplete(),
		Members:          toPaymentResponses(chain.Members),
	}
}
