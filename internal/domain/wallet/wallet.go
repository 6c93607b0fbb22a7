package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientFunds rejects a debit the balance cannot cover
var ErrInsufficientFunds = errors.New("insufficient funds for debit")

// Account holds a customer's spendable balance. The balance is only ever
// mutated through the ledger service's credit/debit path; every mutation is
// keyed by a deposit or adjustment reference applied at most once.
type Account struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // Pesewas (minor units)
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates an empty wallet for the given user. The ledger
// provisions wallets lazily through this on the first credit.
func NewAccount(userID uuid.UUID, currency string) *Account {
	return &Account{
		UserID:    userID,
		Balance:   0,
		Currency:  currency,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// CanDebit checks if the wallet has sufficient funds for a debit
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}
