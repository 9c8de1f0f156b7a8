package services

import (
	"context"

	"github.com/nimasrn/credit-gateway/internal/idempotency"
	"github.com/nimasrn/credit-gateway/internal/model"
)

type UserRepository interface {
	CreateIfNotExists(ctx context.Context, user *model.User) (*model.User, bool, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, user *model.User) (*model.User, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	CompletePending(ctx context.Context, id, paymentID string) (bool, error)
	FailPending(ctx context.Context, id string) (bool, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Transaction, error)
	FindByUserID(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error)
}

// TxManager runs fn inside one database transaction; repositories called with
// the ctx passed to fn join it.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	VerifySignature(orderID, paymentID, signature string) (bool, error)
}

type PackageCatalog interface {
	Lookup(id string) (model.CreditPackage, bool)
	All() []model.CreditPackage
}

type SettlementGuard interface {
	Acquire(ctx context.Context, orderID string) (*idempotency.Lease, error)
}
