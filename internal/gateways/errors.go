package gateway

import (
	"errors"
	"fmt"

	"github.com/nimasrn/credit-gateway/internal/model"
)

var (
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrInvalidAmount        = model.ErrInvalidAmount
	ErrCircuitOpen          = errors.New("payment gateway circuit open")
)

// ProviderError carries the provider's own error payload for non-2xx replies.
type ProviderError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Retryable reports whether the provider failed on its side.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
