package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/credit-gateway/internal/model"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
)

type PaymentService interface {
	Packages() []model.CreditPackage
	CreateOrder(ctx context.Context, userID, packageID string) (*model.OrderResult, error)
	VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (*model.VerifyResult, error)
}

type LedgerService interface {
	RegisterUser(ctx context.Context, req model.RegisterUserRequest) (*model.User, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	DeductCredits(ctx context.Context, userID string, amount int64, reason string) (*model.BalanceChange, error)
	ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error)
}

type CreditHandler struct {
	payments PaymentService
	ledger   LedgerService
}

// RegisterCreditRoutes mounts the credit endpoints; everything except the
// package list goes through auth. Refunds raise a balance without payment and
// are only available to operators through the CLI.
func RegisterCreditRoutes(e *router.Group, h *CreditHandler, auth xhttp.MiddlewareFunc) {
	e.GET("/credits/packages", h.ListPackages)
	e.GET("/credits/balance", auth(h.GetBalance))
	e.GET("/credits/history", auth(h.GetHistory))
	e.POST("/credits/orders", auth(h.CreateOrder))
	e.POST("/credits/verify", auth(h.VerifyPayment))
	e.POST("/credits/deduct", auth(h.DeductCredits))
}

func NewCreditHandler(payments PaymentService, ledger LedgerService) *CreditHandler {
	return &CreditHandler{
		payments: payments,
		ledger:   ledger,
	}
}

type packageView struct {
	model.CreditPackage
	DisplayPrice string `json:"display_price"`
}

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type createOrderRequest struct {
	PackageID string `json:"package_id"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type deductCreditsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type historyResponse struct {
	Items []*model.Transaction `json:"items"`
	Count int                  `json:"count"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CreditHandler) ListPackages(ctx *xhttp.RequestCtx) {
	pkgs := h.payments.Packages()
	items := make([]packageView, len(pkgs))
	for i, p := range pkgs {
		items[i] = packageView{CreditPackage: p, DisplayPrice: p.DisplayPrice()}
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

func (h *CreditHandler) GetBalance(ctx *xhttp.RequestCtx) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

func (h *CreditHandler) CreateOrder(ctx *xhttp.RequestCtx) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.payments.CreateOrder(ctx, userID, req.PackageID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, res)
}

func (h *CreditHandler) VerifyPayment(ctx *xhttp.RequestCtx) {
	if _, ok := requireUser(ctx); !ok {
		return
	}
	var req verifyPaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.payments.VerifyPayment(ctx, model.VerifyPaymentRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

func (h *CreditHandler) GetHistory(ctx *xhttp.RequestCtx) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	f := model.TransactionFilter{UserID: userID}
	if v := query(ctx, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(ctx, xhttp.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer", Field: "limit"})
			return
		}
		f.Limit = n
	}
	if v := query(ctx, "type"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			typ := model.TransactionType(part)
			if !typ.Valid() {
				writeJSON(ctx, xhttp.StatusBadRequest, errorResponse{
					Error: "type must be one of PURCHASE, DEDUCTION, REFUND",
					Field: "type",
				})
				return
			}
			f.Types = append(f.Types, typ)
		}
	}

	items, err := h.ledger.ListTransactions(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, historyResponse{Items: items, Count: len(items)})
}

func (h *CreditHandler) DeductCredits(ctx *xhttp.RequestCtx) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req deductCreditsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	change, err := h.ledger.DeductCredits(ctx, userID, req.Amount, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, change)
}
