package model

import "time"

type TransactionType string

const (
	TransactionTypePurchase  TransactionType = "PURCHASE"
	TransactionTypeDeduction TransactionType = "DEDUCTION"
	TransactionTypeRefund    TransactionType = "REFUND"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeDeduction, TransactionTypeRefund:
		return true
	}
	return false
}

// TransactionStatus only moves PENDING -> COMPLETED or PENDING -> FAILED.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

type Transaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	PaymentAmount *int64            `json:"payment_amount,omitempty"` // minor currency units, PURCHASE only
	Currency      string            `json:"currency,omitempty"`
	PackageID     string            `json:"package_id,omitempty"`
	OrderID       *string           `json:"order_id,omitempty"`
	PaymentID     *string           `json:"payment_id,omitempty"`
	Status        TransactionStatus `json:"status"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (t Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

func (t Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

func (t Transaction) IsPurchase() bool {
	return t.Type == TransactionTypePurchase
}

// MarkCompleted returns the settled transaction. Terminal transactions are
// returned unchanged.
func (t Transaction) MarkCompleted(paymentID string) Transaction {
	if t.IsTerminal() {
		return t
	}
	t.Status = TransactionStatusCompleted
	if paymentID != "" {
		t.PaymentID = &paymentID
	}
	return t
}

// MarkFailed returns the failed transaction. Terminal transactions are
// returned unchanged.
func (t Transaction) MarkFailed() Transaction {
	if t.IsTerminal() {
		return t
	}
	t.Status = TransactionStatusFailed
	return t
}

// SignedAmount is the effect of a completed transaction on the balance.
func (t Transaction) SignedAmount() int64 {
	if t.Type == TransactionTypeDeduction {
		return -t.Amount
	}
	return t.Amount
}

// ExpectedBalance folds a user's ledger into the balance it implies:
// grant + completed purchases + completed refunds - completed deductions.
func ExpectedBalance(grant int64, txns []*Transaction) int64 {
	balance := grant
	for _, t := range txns {
		if t == nil || !t.IsCompleted() {
			continue
		}
		balance += t.SignedAmount()
	}
	return balance
}

// OrderResult is returned to the client so it can open the provider checkout.
type OrderResult struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Credits       int64  `json:"credits"`
	KeyID         string `json:"key_id,omitempty"`
}

type VerifyPaymentRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

type VerifyResult struct {
	Success        bool  `json:"success"`
	NewBalance     int64 `json:"new_balance"`
	AlreadySettled bool  `json:"already_settled"`
}

// TransactionFilter controls history queries.
type TransactionFilter struct {
	UserID string
	Types  []TransactionType
	Limit  int // default 50
}

// BalanceChange is the outcome of a synchronous ledger mutation.
type BalanceChange struct {
	Transaction *Transaction `json:"transaction"`
	NewBalance  int64        `json:"new_balance"`
}
