package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/prom"
)

type LedgerConfig struct {
	InitialGrant int64
	HistoryLimit int
}

type LedgerService struct {
	users  UserRepository
	txns   TransactionRepository
	tx     TxManager
	config LedgerConfig
}

func NewLedgerService(users UserRepository, txns TransactionRepository, tx TxManager, config LedgerConfig) *LedgerService {
	if config.InitialGrant < 0 {
		config.InitialGrant = 0
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = repository.DefaultHistoryLimit
	}
	if config.HistoryLimit > repository.MaxHistoryLimit {
		config.HistoryLimit = repository.MaxHistoryLimit
	}
	return &LedgerService{
		users:  users,
		txns:   txns,
		tx:     tx,
		config: config,
	}
}

// RegisterUser creates the user with the initial grant. Registering an
// existing id returns the stored user and grants nothing.
func (s *LedgerService) RegisterUser(ctx context.Context, req model.RegisterUserRequest) (*model.User, error) {
	req.ID = strings.TrimSpace(req.ID)
	if err := required("user_id", req.ID); err != nil {
		return nil, err
	}

	user, created, err := s.users.CreateIfNotExists(ctx, &model.User{
		ID:            req.ID,
		Email:         strings.TrimSpace(req.Email),
		Name:          strings.TrimSpace(req.Name),
		CreditBalance: s.config.InitialGrant,
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	if created {
		logger.Info("User registered", "user_id", user.ID, "initial_grant", s.config.InitialGrant)
	}
	return user, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := required("user_id", userID); err != nil {
		return 0, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, translate(err)
	}
	return user.CreditBalance, nil
}

// DeductCredits spends credits and records a COMPLETED DEDUCTION in the same
// database transaction.
func (s *LedgerService) DeductCredits(ctx context.Context, userID string, amount int64, reason string) (*model.BalanceChange, error) {
	return s.apply(ctx, userID, amount, reason, model.TransactionTypeDeduction, model.User.DeductCredits)
}

// RefundCredits returns credits and records a COMPLETED REFUND.
func (s *LedgerService) RefundCredits(ctx context.Context, userID string, amount int64, reason string) (*model.BalanceChange, error) {
	return s.apply(ctx, userID, amount, reason, model.TransactionTypeRefund, model.User.AddCredits)
}

func (s *LedgerService) apply(
	ctx context.Context,
	userID string,
	amount int64,
	reason string,
	typ model.TransactionType,
	mutate func(model.User, int64) (model.User, error),
) (*model.BalanceChange, error) {
	if err := required("user_id", userID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive", Err: ErrInvalidAmount}
	}

	var change model.BalanceChange
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return translate(err)
		}

		next, err := mutate(*user, amount)
		if err != nil {
			return err
		}

		updated, err := s.users.Update(ctx, &next)
		if err != nil {
			return translate(err)
		}

		metadata := map[string]any{}
		if reason = strings.TrimSpace(reason); reason != "" {
			metadata["reason"] = reason
		}
		txn, err := s.txns.Create(ctx, &model.Transaction{
			UserID:   userID,
			Type:     typ,
			Amount:   amount,
			Status:   model.TransactionStatusCompleted,
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", strings.ToLower(string(typ)), err)
		}

		change = model.BalanceChange{Transaction: txn, NewBalance: updated.CreditBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.AddCreditsMoved(string(typ), amount)
	logger.Info("Ledger updated",
		"user_id", userID,
		"type", string(typ),
		"amount", amount,
		"transaction_id", change.Transaction.ID,
		"new_balance", change.NewBalance)

	return &change, nil
}

// GetHistory returns the user's most recent transactions, newest first.
func (s *LedgerService) GetHistory(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return s.ListTransactions(ctx, model.TransactionFilter{UserID: userID})
}

// ListTransactions is GetHistory with a caller-chosen limit and type filter.
// The limit is capped by the configured history limit.
func (s *LedgerService) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
	if err := required("user_id", filter.UserID); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > s.config.HistoryLimit {
		filter.Limit = s.config.HistoryLimit
	}
	return s.txns.FindByUserID(ctx, filter)
}
