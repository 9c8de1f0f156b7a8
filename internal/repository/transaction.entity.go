package repository

import (
	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"gorm.io/datatypes"
)

type TransactionEntity struct {
	ID            string            `db:"id"             gorm:"primaryKey;column:id;type:varchar(36)"`
	UserID        string            `db:"user_id"        gorm:"column:user_id;not null;index"`
	Type          string            `db:"type"           gorm:"column:type;not null;type:varchar(16)"`
	Amount        int64             `db:"amount"         gorm:"column:amount;not null"`
	PaymentAmount *int64            `db:"payment_amount" gorm:"column:payment_amount"`
	Currency      string            `db:"currency"       gorm:"column:currency;not null;default:''"`
	PackageID     string            `db:"package_id"     gorm:"column:package_id;not null;default:''"`
	OrderID       *string           `db:"order_id"       gorm:"column:order_id;uniqueIndex"`
	PaymentID     *string           `db:"payment_id"     gorm:"column:payment_id"`
	Status        string            `db:"status"         gorm:"column:status;not null;type:varchar(16);index"`
	Metadata      datatypes.JSONMap `db:"metadata"       gorm:"column:metadata"`
	pg.Timestamps
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	var metadata datatypes.JSONMap
	if m.Metadata != nil {
		metadata = datatypes.JSONMap(m.Metadata)
	}
	return &TransactionEntity{
		ID:            m.ID,
		UserID:        m.UserID,
		Type:          string(m.Type),
		Amount:        m.Amount,
		PaymentAmount: m.PaymentAmount,
		Currency:      m.Currency,
		PackageID:     m.PackageID,
		OrderID:       m.OrderID,
		PaymentID:     m.PaymentID,
		Status:        string(m.Status),
		Metadata:      metadata,
		Timestamps: pg.Timestamps{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	var metadata map[string]any
	if e.Metadata != nil {
		metadata = map[string]any(e.Metadata)
	}
	return &model.Transaction{
		ID:            e.ID,
		UserID:        e.UserID,
		Type:          model.TransactionType(e.Type),
		Amount:        e.Amount,
		PaymentAmount: e.PaymentAmount,
		Currency:      e.Currency,
		PackageID:     e.PackageID,
		OrderID:       e.OrderID,
		PaymentID:     e.PaymentID,
		Status:        model.TransactionStatus(e.Status),
		Metadata:      metadata,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
