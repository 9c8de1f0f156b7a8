package handlers

import (
	"encoding/json"
	"errors"

	"github.com/nimasrn/credit-gateway/internal/services"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
	"github.com/nimasrn/credit-gateway/pkg/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode response", "path", string(ctx.Path()), "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"error":"Internal Server Error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeJSON(ctx, xhttp.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}

	status := statusFor(err)
	if status >= xhttp.StatusInternalServerError && status != xhttp.StatusServiceUnavailable {
		logger.Error("Unhandled service error", "path", string(ctx.Path()), "error", err)
		writeError(ctx, status, xhttp.StatusText(status))
		return
	}
	writeError(ctx, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnknownPackage),
		errors.Is(err, services.ErrInvalidAmount):
		return xhttp.StatusBadRequest
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		return xhttp.StatusNotFound
	case errors.Is(err, services.ErrInvalidSignature),
		errors.Is(err, services.ErrInsufficientCredits):
		return xhttp.StatusPaymentRequired
	case errors.Is(err, services.ErrTransactionClosed),
		errors.Is(err, services.ErrSettlementInProgress):
		return xhttp.StatusConflict
	case errors.Is(err, services.ErrGatewayUnavailable):
		return xhttp.StatusServiceUnavailable
	}
	return xhttp.StatusInternalServerError
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// requireUser writes 401 and returns false when the request carries no
// authenticated user.
func requireUser(ctx *xhttp.RequestCtx) (string, bool) {
	userID := xhttp.UserID(ctx)
	if userID == "" {
		writeError(ctx, xhttp.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}
