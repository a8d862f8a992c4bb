package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

// BalanceEngine answers balance queries and validates balance mutations.
//
// Current balance reads the stored running total. Historical balance is a
// separate computation path that aggregates the immutable ledger and never
// consults the stored field, so a bug in running-balance maintenance cannot
// corrupt a historical answer.
type BalanceEngine struct {
	users  *UserStore
	ledger *TransactionLedger
}

func NewBalanceEngine(users *UserStore, ledger *TransactionLedger) *BalanceEngine {
	return &BalanceEngine{users: users, ledger: ledger}
}

// Balance returns the user's balance. A nil asOf selects the stored running
// balance; a non-nil asOf selects ledger reconstruction up to that instant.
func (e *BalanceEngine) Balance(ctx context.Context, userID int, asOf *time.Time) (decimal.Decimal, error) {
	if asOf == nil {
		return e.users.Balance(ctx, userID)
	}

	if _, err := e.users.Get(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return e.ledger.SumUpTo(ctx, userID, *asOf)
}

// Apply computes the candidate running balance for a new transaction.
// Nothing is persisted here; the caller commits the candidate together with
// the ledger record. A candidate below zero is ErrInsufficientFunds and the
// stored balance stays untouched.
func (e *BalanceEngine) Apply(current, amount decimal.Decimal, txType models.TransactionType) (decimal.Decimal, error) {
	if !txType.Valid() {
		return decimal.Zero, fmt.Errorf("unknown transaction type %q", txType)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", amount)
	}

	candidate := current.Add(txType.Signed(amount))
	if candidate.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}

	return candidate, nil
}
