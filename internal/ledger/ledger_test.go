package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

func TestTransactionLedger_AppendTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	txLedger := NewTransactionLedger(db)

	t.Run("successful append fills in the row id", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		record := &models.Transaction{
			TransactionID: "3f1c9b2e-0000-0000-0000-000000000001",
			UserID:        1,
			Amount:        decimal.RequireFromString("50.00"),
			Type:          models.TypeDeposit,
			CreatedAt:     time.Now().UTC(),
		}

		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(record.TransactionID, record.UserID, record.Amount, "DEPOSIT", record.CreatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		err := txLedger.AppendTx(tx, record)
		assert.NoError(t, err)
		assert.Equal(t, 7, record.ID)
	})

	t.Run("identifier collision", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		record := &models.Transaction{
			TransactionID: "3f1c9b2e-0000-0000-0000-000000000001",
			UserID:        1,
			Amount:        decimal.RequireFromString("50.00"),
			Type:          models.TypeDeposit,
			CreatedAt:     time.Now().UTC(),
		}

		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_transaction_id_key"})

		err := txLedger.AppendTx(tx, record)
		assert.ErrorIs(t, err, ErrTransactionExists)
	})
}

func TestTransactionLedger_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	txLedger := NewTransactionLedger(db)

	t.Run("existing transaction", func(t *testing.T) {
		createdAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT id, transaction_id, user_id, amount, type, created_at FROM transactions WHERE transaction_id = \\$1").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "user_id", "amount", "type", "created_at"}).
				AddRow(7, "tx-1", 1, "50.00", "DEPOSIT", createdAt))

		record, err := txLedger.Get(context.Background(), "tx-1")
		assert.NoError(t, err)
		assert.Equal(t, models.TypeDeposit, record.Type)
		assert.Equal(t, "50.00", record.Amount.StringFixed(2))
		assert.Equal(t, createdAt, record.CreatedAt)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, transaction_id, user_id, amount, type, created_at FROM transactions WHERE transaction_id = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := txLedger.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionLedger_SumUpTo(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	txLedger := NewTransactionLedger(db)
	asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("signed sum up to the timestamp", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN type = 'DEPOSIT' THEN amount ELSE -amount END\\), 0\\) FROM transactions WHERE user_id = \\$1 AND created_at <= \\$2").
			WithArgs(1, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("20.00"))

		total, err := txLedger.SumUpTo(context.Background(), 1, asOf)
		assert.NoError(t, err)
		assert.Equal(t, "20.00", total.StringFixed(2))
	})

	t.Run("no transactions yields zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs(1, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))

		total, err := txLedger.SumUpTo(context.Background(), 1, asOf)
		assert.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	// The aggregation is keyed on recorded creation timestamps, so the same
	// asOf argument returns the same value on every call.
	t.Run("repeat query for the same timestamp is identical", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			mock.ExpectQuery("SELECT COALESCE").
				WithArgs(1, asOf).
				WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("50.00"))
		}

		first, err := txLedger.SumUpTo(context.Background(), 1, asOf)
		assert.NoError(t, err)
		second, err := txLedger.SumUpTo(context.Background(), 1, asOf)
		assert.NoError(t, err)
		assert.True(t, first.Equal(second))
	})
}

func TestTransactionLedger_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	txLedger := NewTransactionLedger(db)

	t.Run("newest first", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, transaction_id, user_id, amount, type, created_at FROM transactions WHERE user_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
			WithArgs(1, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "user_id", "amount", "type", "created_at"}).
				AddRow(2, "tx-2", 1, "30.00", "WITHDRAW", time.Now()).
				AddRow(1, "tx-1", 1, "50.00", "DEPOSIT", time.Now()))

		transactions, err := txLedger.ListByUser(context.Background(), 1, 10)
		assert.NoError(t, err)
		assert.Len(t, transactions, 2)
		assert.Equal(t, models.TypeWithdraw, transactions[0].Type)
		assert.Equal(t, models.TypeDeposit, transactions[1].Type)
	})

	t.Run("no transactions", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, transaction_id, user_id, amount, type, created_at FROM transactions WHERE user_id = \\$1").
			WithArgs(2, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "user_id", "amount", "type", "created_at"}))

		transactions, err := txLedger.ListByUser(context.Background(), 2, 10)
		assert.NoError(t, err)
		assert.Empty(t, transactions)
	})
}
