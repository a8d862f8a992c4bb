package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

// maxIDAttempts bounds identifier regeneration on collision.
const maxIDAttempts = 3

// Admission validates and records new transactions exactly once. The ledger
// append and the running-balance update commit as one SQL transaction, with
// the user's row locked for the whole check-then-write window.
type Admission struct {
	db     *sql.DB
	users  *UserStore
	ledger *TransactionLedger
	engine *BalanceEngine

	// newID generates transaction identifiers; replaced in tests to force
	// collisions.
	newID func() string
}

func NewAdmission(db *sql.DB, users *UserStore, ledger *TransactionLedger, engine *BalanceEngine) *Admission {
	return &Admission{
		db:     db,
		users:  users,
		ledger: ledger,
		engine: engine,
		newID:  uuid.NewString,
	}
}

// Submit records a transaction for the user or rejects it leaving no trace.
// An identifier collision is retried with a fresh identifier;
// ErrTransactionExists only surfaces once the retries are exhausted.
func (a *Admission) Submit(ctx context.Context, userID int, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	var lastErr error

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		record, err := a.submit(ctx, a.newID(), userID, amount, txType)
		if errors.Is(err, ErrTransactionExists) {
			log.Printf("[ADMISSION] Transaction ID collision for user %d, regenerating (attempt %d/%d)",
				userID, attempt, maxIDAttempts)
			lastErr = err
			continue
		}
		return record, err
	}

	return nil, lastErr
}

func (a *Admission) submit(ctx context.Context, transactionID string, userID int, amount decimal.Decimal, txType models.TransactionType) (*models.Transaction, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	taken, err := a.ledger.ExistsTx(tx, transactionID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTransactionExists
	}

	current, err := a.users.BalanceForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	candidate, err := a.engine.Apply(current, amount, txType)
	if err != nil {
		return nil, err
	}

	record := &models.Transaction{
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		CreatedAt:     time.Now().UTC(),
	}

	if err := a.ledger.AppendTx(tx, record); err != nil {
		return nil, err
	}
	if err := a.users.UpdateBalanceTx(tx, userID, candidate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[ADMISSION] Transaction %s recorded for user %d: %s %s, balance %s",
		record.TransactionID, userID, record.Type, record.Amount.StringFixed(2), candidate.StringFixed(2))
	return record, nil
}
