package services

import (
	"errors"
	"fmt"

	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrUnknownPackage      = errors.New("unknown credit package")
	ErrInvalidAmount       = model.ErrInvalidAmount
	ErrInsufficientCredits = model.ErrInsufficientCredits
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidSignature    = errors.New("invalid payment signature")
	// ErrTransactionClosed is returned for orders that already FAILED; the
	// client has to create a new order.
	ErrTransactionClosed    = errors.New("transaction is closed")
	ErrSettlementInProgress = errors.New("settlement already in progress")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// and, when set, the more specific Err.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

// translate maps repository sentinels onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrTransactionNotFound):
		return ErrTransactionNotFound
	}
	return err
}
