package postgres

import (
	"errors"
	"fmt"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes that mean "try the transaction again"
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapError marks contention errors as domain.ErrTransient and leaves everything else untouched
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}
	return false
}
