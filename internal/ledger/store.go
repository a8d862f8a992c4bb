package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Dimitrionian/wallet-service/internal/models"
)

// UserStore reads and writes wallet account holders. The running balance is
// only ever written through transaction admission; nothing else mutates it.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new user with a zero balance. The UNIQUE constraint
// on users.email is the enforcement of record for duplicate registrations;
// its violation is mapped to ErrUserExists.
func (s *UserStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		Name:    name,
		Email:   strings.ToLower(email),
		Balance: decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password, balance, created_at, updated_at)
		VALUES ($1, $2, $3, 0.00, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		user.Name, user.Email, passwordHash).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// FindByEmail returns the user and their stored password hash.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, string, error) {
	user := &models.User{}
	var passwordHash string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, balance, created_at, updated_at
		FROM users
		WHERE email = $1`,
		strings.ToLower(email)).Scan(&user.ID, &user.Name, &user.Email, &passwordHash,
		&user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("find user by email: %w", err)
	}

	return user, passwordHash, nil
}

// Get returns the user by id, without credentials.
func (s *UserStore) Get(ctx context.Context, userID int) (*models.User, error) {
	user := &models.User{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, balance, created_at, updated_at
		FROM users
		WHERE id = $1`,
		userID).Scan(&user.ID, &user.Name, &user.Email, &user.Balance,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// Balance returns the stored running balance.
func (s *UserStore) Balance(ctx context.Context, userID int) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := s.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}

	return balance, nil
}

// BalanceForUpdate reads the running balance and locks the user's row until
// the caller's transaction ends. Concurrent submissions for the same user
// queue up on this lock, which serializes the check-then-write sequence.
func (s *UserStore) BalanceForUpdate(tx *sql.Tx, userID int) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRow(`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("lock user row: %w", err)
	}

	return balance, nil
}

// UpdateBalanceTx writes the new running balance inside the caller's
// transaction.
func (s *UserStore) UpdateBalanceTx(tx *sql.Tx, userID int, balance decimal.Decimal) error {
	result, err := tx.Exec(`UPDATE users SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balance, userID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
