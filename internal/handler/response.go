package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://cicilan.app/errors/validation"
	ErrorTypeNotFound     = "https://cicilan.app/errors/not-found"
	ErrorTypeUnauthorized = "https://cicilan.app/errors/unauthorized"
	ErrorTypeConflict     = "https://cicilan.app/errors/conflict"
	ErrorTypeInternal     = "https://cicilan.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, ProblemDetails{
		Type:     ErrorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// fieldErrors names the request field each validation error belongs to
var fieldErrors = []struct {
	err   error
	field string
}{
	{domain.ErrPaymentAmountInvalid, "amount"},
	{domain.ErrPaymentStatusInvalid, "status"},
	{domain.ErrPaymentDateRequired, "paymentDate"},
	{domain.ErrInvalidDateRange, "from"},
	{domain.ErrEmptyDateRange, "from"},
	{domain.ErrInstallmentIndexOutOfRange, "installmentIndex"},
	{domain.ErrPeriodTypeInvalid, "periodType"},
	{domain.ErrLoanBorrowerRefEmpty, "borrowerRef"},
	{domain.ErrLoanBorrowerRefTooLong, "borrowerRef"},
	{domain.ErrLoanPrincipalInvalid, "principalAmount"},
	{domain.ErrLoanInstallmentInvalid, "installmentAmount"},
	{domain.ErrLoanFinalInstallmentInvalid, "finalInstallmentAmount"},
	{domain.ErrLoanPeriodsInvalid, "periods"},
	{domain.ErrLoanAmountModeInvalid, "amountMode"},
	{domain.ErrLoanScheduleStartRequired, "scheduleStart"},
}

// respondLedgerError maps a ledger error onto a problem response.
// Unknown errors are logged and reported as internal.
func respondLedgerError(c echo.Context, err error, action string, fields func(*zerolog.Event) *zerolog.Event) error {
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: fe.field, Message: fe.err.Error()},
			})
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return NewValidationError(c, err.Error(), nil)
	case errors.Is(err, domain.ErrLoanNotFound):
		return NewNotFoundError(c, "Loan not found")
	case errors.Is(err, domain.ErrPaymentNotFound):
		return NewNotFoundError(c, "Payment not found")
	case errors.Is(err, domain.ErrChainNotFound):
		return NewNotFoundError(c, "Installment chain not found")
	case errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, "Resource not found")
	case errors.Is(err, domain.ErrNonPartialChainCompletion):
		return NewConflictError(c, "Only a chain anchored by a partial payment can be completed")
	case errors.Is(err, domain.ErrLoanNotCompleted):
		return NewConflictError(c, "Loan has not been completed")
	case errors.Is(err, domain.ErrTransient):
		log.Warn().Err(err).Str("action", action).Msg("Ledger contention, retries exhausted")
		return NewConflictError(c, "The loan is being updated by another request, please retry")
	}

	event := log.Error().Err(err).Str("action", action)
	if fields != nil {
		event = fields(event)
	}
	event.Msg("Ledger operation failed")
	return NewInternalError(c, "Failed to "+action)
}
