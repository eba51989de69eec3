package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondLedgerError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errType string
		field   string
		detail  string
	}{
		{"field validation", domain.ErrPaymentAmountInvalid, http.StatusBadRequest, ErrorTypeValidation, "amount", ""},
		{"wrapped field validation", fmt.Errorf("record: %w", domain.ErrLoanPeriodsInvalid), http.StatusBadRequest, ErrorTypeValidation, "periods", ""},
		{"generic invalid input", domain.ErrInvalidInput, http.StatusBadRequest, ErrorTypeValidation, "", ""},
		{"loan not found", domain.ErrLoanNotFound, http.StatusNotFound, ErrorTypeNotFound, "", "Loan not found"},
		{"payment not found", domain.ErrPaymentNotFound, http.StatusNotFound, ErrorTypeNotFound, "", "Payment not found"},
		{"chain not found", domain.ErrChainNotFound, http.StatusNotFound, ErrorTypeNotFound, "", "Installment chain not found"},
		{"object not found", domain.ErrNotFound, http.StatusNotFound, ErrorTypeNotFound, "", "Resource not found"},
		{"non partial chain", domain.ErrNonPartialChainCompletion, http.StatusConflict, ErrorTypeConflict, "", ""},
		{"loan still open", domain.ErrLoanNotCompleted, http.StatusConflict, ErrorTypeConflict, "", "Loan has not been completed"},
		{"contention", fmt.Errorf("record_payment: gave up after 3 attempts: %w", domain.ErrTransient), http.StatusConflict, ErrorTypeConflict, "", ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, ErrorTypeInternal, "", "Failed to record payment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/1/payments", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			fields := func(ev *zerolog.Event) *zerolog.Event { return ev.Int32("loan_id", 1) }
			require.NoError(t, respondLedgerError(c, tt.err, "record payment", fields))

			assert.Equal(t, tt.status, rec.Code)
			var problem ProblemDetails
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.errType, problem.Type)
			assert.Equal(t, tt.status, problem.Status)
			assert.Equal(t, "/api/v1/loans/1/payments", problem.Instance)
			if tt.field != "" {
				require.Len(t, problem.Errors, 1)
				assert.Equal(t, tt.field, problem.Errors[0].Field)
			}
			if tt.detail != "" {
				assert.Equal(t, tt.detail, problem.Detail)
			}
		})
	}
}
