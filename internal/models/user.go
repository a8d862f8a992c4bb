package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a wallet account holder. Balance is the running total maintained
// incrementally by transaction admission and never drops below zero.
type User struct {
	ID        int             `json:"id" example:"1"`                                // User ID
	Name      string          `json:"name" example:"John Doe"`                       // Display name
	Email     string          `json:"email" example:"user@example.com"`              // Login identifier
	Balance   decimal.Decimal `json:"balance" swaggertype:"string" example:"100.00"` // Running balance
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
