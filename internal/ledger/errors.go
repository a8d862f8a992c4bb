package ledger

import (
	"errors"

	"github.com/lib/pq"
)

// Domain errors returned by the core components. They are deterministic for
// a given input and state, and a rejected operation leaves no side effects.
// Anything else coming out of this package is a wrapped storage fault.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionExists   = errors.New("transaction already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
