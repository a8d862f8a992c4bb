package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a monetary event.
type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypeWithdraw TransactionType = "WITHDRAW"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeDeposit || t == TypeWithdraw
}

// Signed returns amount with the sign the type contributes to a balance:
// positive for deposits, negative for withdrawals.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TypeWithdraw {
		return amount.Neg()
	}
	return amount
}

// Transaction is a single immutable ledger record. Rows are appended once
// and never updated or deleted.
type Transaction struct {
	ID            int             `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	UserID        int             `json:"user_id" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount" swaggertype:"string" example:"50.00"`
	Type          TransactionType `json:"type" db:"type"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
