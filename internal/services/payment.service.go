package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/credit-gateway/internal/idempotency"
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/prom"
)

const (
	DefaultCurrency  = "INR"
	receiptPrefix    = "rcpt_"
	maxReceiptLength = 40
)

type PaymentConfig struct {
	Currency string
	// KeyID is echoed to clients so they can open the provider checkout.
	KeyID string
}

type PaymentService struct {
	users   UserRepository
	txns    TransactionRepository
	tx      TxManager
	gateway PaymentGateway
	catalog PackageCatalog
	guard   SettlementGuard
	config  PaymentConfig
}

func NewPaymentService(users UserRepository, txns TransactionRepository, tx TxManager, gateway PaymentGateway, catalog PackageCatalog, config PaymentConfig) *PaymentService {
	if config.Currency == "" {
		config.Currency = DefaultCurrency
	}
	return &PaymentService{
		users:   users,
		txns:    txns,
		tx:      tx,
		gateway: gateway,
		catalog: catalog,
		config:  config,
	}
}

// WithSettlementGuard enables the per-order lease taken before settlement.
func (s *PaymentService) WithSettlementGuard(guard SettlementGuard) *PaymentService {
	s.guard = guard
	return s
}

func (s *PaymentService) Packages() []model.CreditPackage {
	return s.catalog.All()
}

func receiptFor(txnID string) string {
	r := receiptPrefix + strings.ReplaceAll(txnID, "-", "")
	if len(r) > maxReceiptLength {
		r = r[:maxReceiptLength]
	}
	return r
}

// CreateOrder records a PENDING purchase and registers the matching order
// with the gateway. If the gateway call fails the PENDING row is left without
// an order id.
func (s *PaymentService) CreateOrder(ctx context.Context, userID, packageID string) (*model.OrderResult, error) {
	userID = strings.TrimSpace(userID)
	packageID = strings.TrimSpace(packageID)
	if err := required("user_id", userID); err != nil {
		return nil, err
	}
	if err := required("package_id", packageID); err != nil {
		return nil, err
	}

	pkg, ok := s.catalog.Lookup(packageID)
	if !ok {
		return nil, &ValidationError{Field: "package_id", Reason: "unknown package " + packageID, Err: ErrUnknownPackage}
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, translate(err)
	}

	paymentAmount := pkg.PriceMinor
	txn, err := s.txns.Create(ctx, &model.Transaction{
		UserID:        userID,
		Type:          model.TransactionTypePurchase,
		Amount:        pkg.Credits,
		PaymentAmount: &paymentAmount,
		Currency:      s.config.Currency,
		PackageID:     pkg.ID,
		Status:        model.TransactionStatusPending,
		Metadata:      map[string]any{"package_name": pkg.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	orderID, err := s.gateway.CreateOrder(ctx, pkg.PriceMinor, s.config.Currency, receiptFor(txn.ID))
	if err != nil {
		prom.IncOrder(prom.OutcomeFailure)
		logger.Warn("Gateway order creation failed, transaction left pending",
			"transaction_id", txn.ID,
			"user_id", userID,
			"package_id", pkg.ID,
			"error", err)
		if errors.Is(err, ErrInvalidAmount) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	withOrder := *txn
	withOrder.OrderID = &orderID
	if _, err := s.txns.Update(ctx, &withOrder); err != nil {
		return nil, fmt.Errorf("attach order id: %w", translate(err))
	}

	prom.IncOrder(prom.OutcomeCreated)
	logger.Info("Order created",
		"order_id", orderID,
		"transaction_id", txn.ID,
		"user_id", userID,
		"package_id", pkg.ID,
		"credits", pkg.Credits,
		"amount", pkg.PriceMinor)

	return &model.OrderResult{
		OrderID:       orderID,
		TransactionID: txn.ID,
		Amount:        pkg.PriceMinor,
		Currency:      s.config.Currency,
		Credits:       pkg.Credits,
		KeyID:         s.config.KeyID,
	}, nil
}

// VerifyPayment settles the order behind req exactly once. Repeated calls for
// a COMPLETED order return the current balance without touching the ledger.
func (s *PaymentService) VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (*model.VerifyResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	for _, f := range []struct{ name, value string }{
		{"order_id", req.OrderID},
		{"payment_id", req.PaymentID},
		{"signature", req.Signature},
	} {
		if err := required(f.name, f.value); err != nil {
			return nil, err
		}
	}

	txn, err := s.txns.FindByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, translate(err)
	}

	if res, done, err := s.resolved(ctx, txn); done {
		return res, err
	}

	if s.guard != nil {
		lease, err := s.guard.Acquire(ctx, req.OrderID)
		switch {
		case errors.Is(err, idempotency.ErrLeaseHeld):
			return nil, ErrSettlementInProgress
		case err != nil:
			logger.Warn("Settlement guard unavailable, relying on database", "order_id", req.OrderID, "error", err)
		default:
			defer func() { _ = lease.Release(context.WithoutCancel(ctx)) }()
		}
	}

	valid, err := s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !valid {
		return nil, s.reject(ctx, txn)
	}

	return s.settle(ctx, txn, req.PaymentID)
}

// resolved handles transactions that are already terminal.
func (s *PaymentService) resolved(ctx context.Context, txn *model.Transaction) (*model.VerifyResult, bool, error) {
	switch txn.Status {
	case model.TransactionStatusCompleted:
		user, err := s.users.FindByID(ctx, txn.UserID)
		if err != nil {
			return nil, true, translate(err)
		}
		prom.IncSettlement(prom.OutcomeReplayed)
		logger.Info("Payment already settled", "order_id", deref(txn.OrderID), "transaction_id", txn.ID)
		return &model.VerifyResult{Success: true, NewBalance: user.CreditBalance, AlreadySettled: true}, true, nil
	case model.TransactionStatusFailed:
		return nil, true, ErrTransactionClosed
	}
	return nil, false, nil
}

func (s *PaymentService) reject(ctx context.Context, txn *model.Transaction) error {
	var failed bool
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		failed, err = s.txns.FailPending(ctx, txn.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}

	prom.IncSettlement(prom.OutcomeRejected)
	logger.Warn("Payment signature rejected",
		"order_id", deref(txn.OrderID),
		"transaction_id", txn.ID,
		"user_id", txn.UserID,
		"marked_failed", failed)

	return ErrInvalidSignature
}

func (s *PaymentService) settle(ctx context.Context, txn *model.Transaction, paymentID string) (*model.VerifyResult, error) {
	start := time.Now()

	var (
		won        bool
		newBalance int64
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		won, err = s.txns.CompletePending(ctx, txn.ID, paymentID)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if !won {
			return nil
		}

		user, err := s.users.FindByIDForUpdate(ctx, txn.UserID)
		if err != nil {
			return translate(err)
		}

		credited, err := user.AddCredits(txn.Amount)
		if err != nil {
			return err
		}

		updated, err := s.users.Update(ctx, &credited)
		if err != nil {
			return fmt.Errorf("credit user: %w", translate(err))
		}
		newBalance = updated.CreditBalance
		return nil
	})
	if err != nil {
		prom.IncSettlement(prom.OutcomeError)
		logger.Error("Settlement rolled back",
			"order_id", deref(txn.OrderID),
			"transaction_id", txn.ID,
			"user_id", txn.UserID,
			"error", err)
		return nil, err
	}

	if !won {
		return s.afterLostRace(ctx, txn)
	}

	prom.IncSettlement(prom.OutcomeCompleted)
	prom.AddCreditsMoved(string(txn.Type), txn.Amount)
	prom.ObserveSettlementDuration(time.Since(start).Seconds())
	logger.Info("Payment settled",
		"order_id", deref(txn.OrderID),
		"transaction_id", txn.ID,
		"user_id", txn.UserID,
		"payment_id", paymentID,
		"credits", txn.Amount,
		"new_balance", newBalance)

	return &model.VerifyResult{Success: true, NewBalance: newBalance}, nil
}

// afterLostRace re-reads a transaction another request resolved first.
func (s *PaymentService) afterLostRace(ctx context.Context, txn *model.Transaction) (*model.VerifyResult, error) {
	prom.IncSettlement(prom.OutcomeLostRace)

	current, err := s.txns.FindByOrderID(ctx, deref(txn.OrderID))
	if err != nil {
		return nil, translate(err)
	}
	if res, done, err := s.resolved(ctx, current); done {
		return res, err
	}
	return nil, ErrSettlementInProgress
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
