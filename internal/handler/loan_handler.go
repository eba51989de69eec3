package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/middleware"
	"github.com/dafibh/cicilan/cicilan-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService    *service.LoanService
	paymentService *service.PaymentService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, paymentService *service.PaymentService) *LoanHandler {
	return &LoanHandler{
		loanService:    loanService,
		paymentService: paymentService,
	}
}

// RegisterLoanRequest represents the register loan request body
type RegisterLoanRequest struct {
	BorrowerRef            string  `json:"borrowerRef" example:"KTP-3174012345"`
	PrincipalAmount        string  `json:"principalAmount" example:"10000.00"`
	InstallmentAmount      string  `json:"installmentAmount" example:"1000.00"`
	FinalInstallmentAmount *string `json:"finalInstallmentAmount,omitempty" example:"1500.00"`
	PeriodType             string  `json:"periodType" example:"monthly"`
	Periods                int32   `json:"periods" example:"12"`
	AmountMode             string  `json:"amountMode,omitempty" example:"custom"`
	ScheduleStart          string  `json:"scheduleStart" example:"2025-01-15"`
}

// AggregatesResponse represents the derived state of a loan's ledger
type AggregatesResponse struct {
	FullyCompletedCount int32   `json:"fullyCompletedCount"`
	AmountPaid          string  `json:"amountPaid"`
	RemainingAmount     string  `json:"remainingAmount"`
	TotalContractAmount string  `json:"totalContractAmount"`
	LastCompletedDate   string  `json:"lastCompletedDate"`
	NextDueDate         *string `json:"nextDueDate"`
	Status              string  `json:"status"`
	PunctualityScore    string  `json:"punctualityScore"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                     int32              `json:"id"`
	BorrowerRef            string             `json:"borrowerRef"`
	PrincipalAmount        string             `json:"principalAmount"`
	InstallmentAmount      string             `json:"installmentAmount"`
	FinalInstallmentAmount string             `json:"finalInstallmentAmount"`
	PeriodType             string             `json:"periodType"`
	Periods                int32              `json:"periods"`
	AmountMode             string             `json:"amountMode"`
	ScheduleStart          string             `json:"scheduleStart"`
	Aggregates             AggregatesResponse `json:"aggregates"`
	Version                int64              `json:"version"`
	CreatedAt              string             `json:"createdAt"`
	UpdatedAt              string             `json:"updatedAt"`
}

// LoanSummaryResponse represents cached loan aggregates
type LoanSummaryResponse struct {
	LoanID     int32              `json:"loanId"`
	Version    int64              `json:"version"`
	Aggregates AggregatesResponse `json:"aggregates"`
	CachedAt   string             `json:"cachedAt"`
}

// AuditEntryResponse represents one audit trail row
type AuditEntryResponse struct {
	ID           int32   `json:"id"`
	PaymentID    int32   `json:"paymentId"`
	Action       string  `json:"action"`
	Actor        string  `json:"actor"`
	AmountBefore *string `json:"amountBefore,omitempty"`
	AmountAfter  *string `json:"amountAfter,omitempty"`
	StatusBefore *string `json:"statusBefore,omitempty"`
	StatusAfter  *string `json:"statusAfter,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// ClosureStatementResponse carries a temporary link to an archived closure statement
type ClosureStatementResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// CreateLoan handles POST /api/v1/loans
// @Summary Register an approved loan
// @Description Stores the loan terms and the aggregates of an empty ledger
// @Tags loans
// @Accept json
// @Produce json
// @Param request body RegisterLoanRequest true "Loan terms"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	var req RegisterLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var errs []ValidationError
	principal, err := decimal.NewFromString(req.PrincipalAmount)
	if err != nil {
		errs = append(errs, ValidationError{Field: "principalAmount", Message: "Must be a valid decimal number"})
	}
	installment, err := decimal.NewFromString(req.InstallmentAmount)
	if err != nil {
		errs = append(errs, ValidationError{Field: "installmentAmount", Message: "Must be a valid decimal number"})
	}
	var final *decimal.Decimal
	if req.FinalInstallmentAmount != nil {
		f, err := decimal.NewFromString(*req.FinalInstallmentAmount)
		if err != nil {
			errs = append(errs, ValidationError{Field: "finalInstallmentAmount", Message: "Must be a valid decimal number"})
		}
		final = &f
	}
	start, err := time.Parse(dateLayout, req.ScheduleStart)
	if err != nil {
		errs = append(errs, ValidationError{Field: "scheduleStart", Message: "Must be a date in YYYY-MM-DD format"})
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Validation failed", errs)
	}

	loan, err := h.loanService.RegisterLoan(c.Request().Context(), workspaceID, service.RegisterLoanInput{
		BorrowerRef:            req.BorrowerRef,
		PrincipalAmount:        principal,
		InstallmentAmount:      installment,
		FinalInstallmentAmount: final,
		PeriodType:             domain.PeriodType(strings.ToLower(req.PeriodType)),
		Periods:                req.Periods,
		AmountMode:             domain.AmountMode(strings.ToLower(req.AmountMode)),
		ScheduleStart:          start,
	})
	if err != nil {
		return respondLedgerError(c, err, "register loan", func(e *zerolog.Event) *zerolog.Event {
			return e.Int32("workspace_id", workspaceID)
		})
	}

	log.Info().Int32("workspace_id", workspaceID).Int32("loan_id", loan.ID).Msg("Loan registered")

	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoan handles GET /api/v1/loans/:loanId
// @Summary Get a loan
// @Description Returns the loan terms together with its current aggregates
// @Tags loans
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "get loan", loanFields(workspaceID, loanID))
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetSummary handles GET /api/v1/loans/:loanId/summary
// @Summary Get loan aggregates
// @Description Served from the summary cache when possible
// @Tags loans
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {object} LoanSummaryResponse
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/summary [get]
func (h *LoanHandler) GetSummary(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	summary, err := h.loanService.GetSummary(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "get loan summary", loanFields(workspaceID, loanID))
	}
	return c.JSON(http.StatusOK, LoanSummaryResponse{
		LoanID:     summary.LoanID,
		Version:    summary.Version,
		Aggregates: toAggregatesResponse(summary.Aggregates),
		CachedAt:   summary.CachedAt.Format(time.RFC3339),
	})
}

// RecomputeLoan handles POST /api/v1/loans/:loanId/recompute
// @Summary Rebuild loan aggregates
// @Description Recomputes the aggregates from the full payment ledger
// @Tags loans
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/recompute [post]
func (h *LoanHandler) RecomputeLoan(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.RecomputeLoan(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "recompute loan", loanFields(workspaceID, loanID))
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetAudit handles GET /api/v1/loans/:loanId/audit
// @Summary List the audit trail of a loan
// @Tags loans
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {array} AuditEntryResponse
// @Failure 404 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/audit [get]
func (h *LoanHandler) GetAudit(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	entries, err := h.paymentService.ListAudit(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "list audit trail", loanFields(workspaceID, loanID))
	}

	response := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		response[i] = toAuditEntryResponse(entry)
	}
	return c.JSON(http.StatusOK, response)
}

// GetClosureStatement handles GET /api/v1/loans/:loanId/closure-statement
// @Summary Get the closure statement of a completed loan
// @Description Returns a presigned link to the archived ledger snapshot
// @Tags loans
// @Produce json
// @Param loanId path int true "Loan ID"
// @Success 200 {object} ClosureStatementResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Security BearerAuth
// @Router /loans/{loanId}/closure-statement [get]
func (h *LoanHandler) GetClosureStatement(c echo.Context) error {
	workspaceID := middleware.GetWorkspaceID(c)
	if workspaceID == 0 {
		return NewUnauthorizedError(c, "Workspace required")
	}

	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	url, err := h.loanService.ClosureStatementURL(c.Request().Context(), workspaceID, loanID)
	if err != nil {
		return respondLedgerError(c, err, "get closure statement", loanFields(workspaceID, loanID))
	}
	return c.JSON(http.StatusOK, ClosureStatementResponse{
		URL:       url,
		ExpiresIn: int(service.ClosureStatementExpiry.Seconds()),
	})
}

// parseIDParam reads a positive integer path parameter
func parseIDParam(c echo.Context, name string) (int32, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return int32(id), nil
}

func loanFields(workspaceID, loanID int32) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Int32("workspace_id", workspaceID).Int32("loan_id", loanID)
	}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDecimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func toAggregatesResponse(a domain.LoanAggregates) AggregatesResponse {
	resp := AggregatesResponse{
		FullyCompletedCount: a.FullyCompletedCount,
		AmountPaid:          a.AmountPaid.StringFixed(2),
		RemainingAmount:     a.RemainingAmount.StringFixed(2),
		TotalContractAmount: a.TotalContractAmount.StringFixed(2),
		LastCompletedDate:   formatDate(a.LastCompletedDate),
		Status:              string(a.Status),
		PunctualityScore:    a.PunctualityScore.StringFixed(2),
	}
	if a.NextDueDate != nil {
		next := formatDate(*a.NextDueDate)
		resp.NextDueDate = &next
	}
	return resp
}

// Helper function to convert domain.Loan to LoanResponse
func toLoanResponse(loan *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:                     loan.ID,
		BorrowerRef:            loan.BorrowerRef,
		PrincipalAmount:        loan.PrincipalAmount.StringFixed(2),
		InstallmentAmount:      loan.InstallmentAmount.StringFixed(2),
		FinalInstallmentAmount: loan.FinalInstallmentAmount.StringFixed(2),
		PeriodType:             string(loan.PeriodType),
		Periods:                loan.Periods,
		AmountMode:             string(loan.AmountMode),
		ScheduleStart:          formatDate(loan.ScheduleStart),
		Aggregates:             toAggregatesResponse(loan.Aggregates()),
		Version:                loan.Version,
		CreatedAt:              loan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              loan.UpdatedAt.Format(time.RFC3339),
	}
}

func toAuditEntryResponse(entry *domain.AuditEntry) AuditEntryResponse {
	resp := AuditEntryResponse{
		ID:           entry.ID,
		PaymentID:    entry.PaymentID,
		Action:       string(entry.Action),
		Actor:        entry.Actor,
		AmountBefore: formatDecimalPtr(entry.AmountBefore),
		AmountAfter:  formatDecimalPtr(entry.AmountAfter),
		CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.StatusBefore != nil {
		s := string(*entry.StatusBefore)
		resp.StatusBefore = &s
	}
	if entry.StatusAfter != nil {
		s := string(*entry.StatusAfter)
		resp.StatusAfter = &s
	}
	return resp
}
