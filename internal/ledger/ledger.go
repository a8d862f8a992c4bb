package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

// TransactionLedger is the append-only log of monetary events. It is the
// source of truth for historical balance reconstruction.
type TransactionLedger struct {
	db *sql.DB
}

func NewTransactionLedger(db *sql.DB) *TransactionLedger {
	return &TransactionLedger{db: db}
}

// ExistsTx reports whether a transaction identifier is already taken,
// within the caller's transaction.
func (l *TransactionLedger) ExistsTx(tx *sql.Tx, transactionID string) (bool, error) {
	var exists bool

	err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_id = $1)`,
		transactionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction id: %w", err)
	}

	return exists, nil
}

// AppendTx writes one ledger record inside the caller's transaction and
// fills in the row id. A transaction_id collision surfaces as
// ErrTransactionExists; with random identifiers it is expected never to
// trigger, the UNIQUE constraint is the backstop.
func (l *TransactionLedger) AppendTx(tx *sql.Tx, record *models.Transaction) error {
	err := tx.QueryRow(`
		INSERT INTO transactions (transaction_id, user_id, amount, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		record.TransactionID, record.UserID, record.Amount, record.Type, record.CreatedAt).
		Scan(&record.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTransactionExists
		}
		return fmt.Errorf("append transaction: %w", err)
	}

	return nil
}

// Get returns the transaction with the given identifier.
func (l *TransactionLedger) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	record := &models.Transaction{}

	err := l.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, user_id, amount, type, created_at
		FROM transactions
		WHERE transaction_id = $1`,
		transactionID).Scan(&record.ID, &record.TransactionID, &record.UserID,
		&record.Amount, &record.Type, &record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return record, nil
}

// SumUpTo aggregates the signed amounts of a user's transactions recorded
// at or before ts, 0 when there are none. It uses the recorded creation
// timestamp, never the query-time clock, so the same ts always yields the
// same value no matter what was submitted since.
func (l *TransactionLedger) SumUpTo(ctx context.Context, userID int, ts time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal

	err := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'DEPOSIT' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE user_id = $1 AND created_at <= $2`,
		userID, ts).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}

	return total, nil
}

// ListByUser returns the user's most recent transactions, newest first.
func (l *TransactionLedger) ListByUser(ctx context.Context, userID, limit int) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, amount, type, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		if err := rows.Scan(&record.ID, &record.TransactionID, &record.UserID,
			&record.Amount, &record.Type, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return transactions, nil
}
