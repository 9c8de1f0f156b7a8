package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create inserts a new ledger entry. An empty ID is filled with a UUID.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// Update replaces the mutable columns of the row. CreatedAt is never touched.
func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	now := time.Now().UTC()

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", txn.ID).
		Updates(map[string]any{
			"type":           entity.Type,
			"amount":         entity.Amount,
			"payment_amount": entity.PaymentAmount,
			"currency":       entity.Currency,
			"package_id":     entity.PackageID,
			"order_id":       entity.OrderID,
			"payment_id":     entity.PaymentID,
			"status":         entity.Status,
			"metadata":       entity.Metadata,
			"updated_at":     now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrTransactionNotFound
	}

	updated := *txn
	updated.UpdatedAt = now
	return &updated, nil
}

// CompletePending moves a PENDING transaction to COMPLETED and records the
// payment id. It reports false when the row was no longer PENDING, which
// means a concurrent caller resolved it first.
func (r *TransactionRepository) CompletePending(ctx context.Context, id, paymentID string) (bool, error) {
	return r.resolvePending(ctx, id, map[string]any{
		"status":     string(model.TransactionStatusCompleted),
		"payment_id": paymentID,
		"updated_at": time.Now().UTC(),
	})
}

// FailPending moves a PENDING transaction to FAILED. Same contract as CompletePending.
func (r *TransactionRepository) FailPending(ctx context.Context, id string) (bool, error) {
	return r.resolvePending(ctx, id, map[string]any{
		"status":     string(model.TransactionStatusFailed),
		"updated_at": time.Now().UTC(),
	})
}

func (r *TransactionRepository) resolvePending(ctx context.Context, id string, columns map[string]any) (bool, error) {
	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.TransactionStatusPending)).
		Updates(columns)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Transaction, error) {
	return r.findOne(r.Read(ctx).Where("order_id = ?", orderID))
}

func (r *TransactionRepository) findOne(db *gorm.DB) (*model.Transaction, error) {
	var entity TransactionEntity

	err := db.First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return toTransactionModel(&entity), nil
}

// FindByUserID returns the user's transactions, newest first.
func (r *TransactionRepository) FindByUserID(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := r.Read(ctx).Where("user_id = ?", filter.UserID)

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where("type IN ?", types)
	}

	var entities []*TransactionEntity
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	models := toTransactionModels(entities)
	if models == nil {
		models = []*model.Transaction{}
	}
	return models, nil
}
