package model

import (
	"fmt"
	"time"
)

// InitialCreditGrant is credited to every user once, at registration.
const InitialCreditGrant int64 = 20

// User owns a credit balance. Values are replaced wholesale on every balance
// change; the mutators below never modify their receiver.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	CreditBalance int64     `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasEnoughCredits reports whether amount can be spent. Non-positive amounts
// are never spendable.
func (u User) HasEnoughCredits(amount int64) bool {
	if amount <= 0 {
		return false
	}
	return u.CreditBalance >= amount
}

func (u User) DeductCredits(amount int64) (User, error) {
	if amount <= 0 {
		return u, ErrInvalidAmount
	}
	if !u.HasEnoughCredits(amount) {
		return u, fmt.Errorf("%w: required %d, available %d", ErrInsufficientCredits, amount, u.CreditBalance)
	}
	u.CreditBalance -= amount
	return u, nil
}

func (u User) AddCredits(amount int64) (User, error) {
	if amount <= 0 {
		return u, ErrInvalidAmount
	}
	u.CreditBalance += amount
	return u, nil
}

type RegisterUserRequest struct {
	ID    string
	Email string
	Name  string
}
