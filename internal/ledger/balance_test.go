package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

func TestBalanceEngine_Apply(t *testing.T) {
	engine := NewBalanceEngine(nil, nil)

	t.Run("deposit adds to balance", func(t *testing.T) {
		candidate, err := engine.Apply(decimal.Zero, decimal.RequireFromString("50.00"), models.TypeDeposit)
		assert.NoError(t, err)
		assert.Equal(t, "50.00", candidate.StringFixed(2))
	})

	t.Run("withdraw subtracts from balance", func(t *testing.T) {
		candidate, err := engine.Apply(decimal.RequireFromString("50.00"), decimal.RequireFromString("30.00"), models.TypeWithdraw)
		assert.NoError(t, err)
		assert.Equal(t, "20.00", candidate.StringFixed(2))
	})

	t.Run("withdraw below zero is rejected", func(t *testing.T) {
		_, err := engine.Apply(decimal.RequireFromString("20.00"), decimal.RequireFromString("100.00"), models.TypeWithdraw)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("withdraw to exactly zero succeeds", func(t *testing.T) {
		candidate, err := engine.Apply(decimal.RequireFromString("80.00"), decimal.RequireFromString("80.00"), models.TypeWithdraw)
		assert.NoError(t, err)
		assert.True(t, candidate.IsZero())
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, err := engine.Apply(decimal.RequireFromString("50.00"), decimal.Zero, models.TypeDeposit)
		assert.Error(t, err)

		_, err = engine.Apply(decimal.RequireFromString("50.00"), decimal.RequireFromString("-5.00"), models.TypeDeposit)
		assert.Error(t, err)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := engine.Apply(decimal.Zero, decimal.RequireFromString("5.00"), models.TransactionType("TRANSFER"))
		assert.Error(t, err)
	})

	t.Run("running balance equals signed sum over a sequence", func(t *testing.T) {
		balance := decimal.Zero
		steps := []struct {
			amount string
			txType models.TransactionType
		}{
			{"50.00", models.TypeDeposit},
			{"30.00", models.TypeWithdraw},
			{"12.34", models.TypeDeposit},
			{"7.34", models.TypeWithdraw},
		}

		expected := decimal.Zero
		for _, step := range steps {
			amount := decimal.RequireFromString(step.amount)
			candidate, err := engine.Apply(balance, amount, step.txType)
			assert.NoError(t, err)
			balance = candidate
			expected = expected.Add(step.txType.Signed(amount))
		}
		assert.True(t, balance.Equal(expected), "balance %s != signed sum %s", balance, expected)
	})
}

func TestBalanceEngine_Balance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	users := NewUserStore(db)
	txLedger := NewTransactionLedger(db)
	engine := NewBalanceEngine(users, txLedger)

	t.Run("current balance reads the stored field", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("50.00"))

		balance, err := engine.Balance(context.Background(), 1, nil)
		assert.NoError(t, err)
		assert.Equal(t, "50.00", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("historical balance aggregates the ledger", func(t *testing.T) {
		asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT id, name, email, balance, created_at, updated_at FROM users WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "created_at", "updated_at"}).
				AddRow(1, "John Doe", "a@x.com", "20.00", time.Now(), time.Now()))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN type = 'DEPOSIT' THEN amount ELSE -amount END\\), 0\\) FROM transactions WHERE user_id = \\$1 AND created_at <= \\$2").
			WithArgs(1, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("50.00"))

		balance, err := engine.Balance(context.Background(), 1, &asOf)
		assert.NoError(t, err)
		assert.Equal(t, "50.00", balance.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("historical balance with no transactions is zero", func(t *testing.T) {
		asOf := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT id, name, email, balance, created_at, updated_at FROM users WHERE id = \\$1").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "created_at", "updated_at"}).
				AddRow(2, "Jane", "b@x.com", "0.00", time.Now(), time.Now()))
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs(2, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))

		balance, err := engine.Balance(context.Background(), 2, &asOf)
		assert.NoError(t, err)
		assert.True(t, balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(99).
			WillReturnError(sql.ErrNoRows)

		_, err := engine.Balance(context.Background(), 99, nil)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	// Both computation paths must agree when asOf covers the whole ledger;
	// a divergence means the running-balance maintenance is buggy.
	t.Run("current and historical paths agree at now", func(t *testing.T) {
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("20.00"))

		current, err := engine.Balance(context.Background(), 1, nil)
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, name, email, balance, created_at, updated_at FROM users WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "created_at", "updated_at"}).
				AddRow(1, "John Doe", "a@x.com", "20.00", time.Now(), time.Now()))
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs(1, now).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("20.00"))

		historical, err := engine.Balance(context.Background(), 1, &now)
		assert.NoError(t, err)
		assert.True(t, current.Equal(historical))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
