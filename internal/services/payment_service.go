package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/Dimitrionian/wallet-service/internal/ledger"
	"github.com/Dimitrionian/wallet-service/internal/models"
)

// balanceCacheTTL bounds staleness of the cached current balance; the cache
// is also dropped on every successful submission.
const balanceCacheTTL = 30 * time.Second

type PaymentService struct {
	admission *ledger.Admission
	balances  *ledger.BalanceEngine
	ledger    *ledger.TransactionLedger
	redis     *redis.Client
	validator *ValidationHelper
}

// TransactionRequest represents the transaction submission payload
// @Description Transaction submission structure
type TransactionRequest struct {
	Amount decimal.Decimal        `json:"amount" swaggertype:"string" example:"50.00"`              // Positive amount
	Type   models.TransactionType `json:"type" validate:"required,oneof=DEPOSIT WITHDRAW" example:"DEPOSIT"` // DEPOSIT or WITHDRAW
}

// BalanceResponse represents a balance enquiry result
// @Description Balance response structure
type BalanceResponse struct {
	Amount string `json:"amount" example:"50.00"` // Balance with two decimal places
}

func NewPaymentService(admission *ledger.Admission, balances *ledger.BalanceEngine, txLedger *ledger.TransactionLedger, redisClient *redis.Client) *PaymentService {
	return &PaymentService{
		admission: admission,
		balances:  balances,
		ledger:    txLedger,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// GetBalance retrieves a user's balance, current or as of a timestamp
// @Summary Get user balance
// @Description Current balance by default; pass ts (unix seconds) for the balance reconstructed from the ledger as of that instant
// @Tags payments
// @Produce json
// @Param userId path int true "User ID"
// @Param ts query int false "Unix timestamp for historical balance"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 404 {object} ErrorResponse "User not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users/{userId}/balance [get]
func (ps *PaymentService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userId"))
	if err != nil {
		SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}

	var asOf *time.Time
	if tsStr := r.URL.Query().Get("ts"); tsStr != "" {
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			SendErrorResponse(w, "Invalid ts parameter", http.StatusBadRequest, nil)
			return
		}
		t := time.Unix(ts, 0).UTC()
		asOf = &t
	}

	// Current balance may be served from cache; the historical path always
	// goes to the ledger.
	if asOf == nil {
		if cached, ok := ps.cachedBalance(r, userID); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(BalanceResponse{Amount: cached})
			return
		}
	}

	balance, err := ps.balances.Balance(r.Context(), userID, asOf)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			log.Printf("[PAYMENT] Balance enquiry for unknown user %d", userID)
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PAYMENT] Balance enquiry failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	amount := balance.StringFixed(2)
	if asOf == nil {
		ps.storeCachedBalance(r, userID, amount)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{Amount: amount})
}

// SubmitTransaction records a deposit or withdrawal for the caller
// @Summary Submit a transaction
// @Description Record a DEPOSIT or WITHDRAW for the authenticated user; the ledger entry and the running balance commit atomically
// @Tags payments
// @Accept json
// @Produce json
// @Param request body TransactionRequest true "Transaction request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 404 {object} ErrorResponse "User not found"
// @Failure 409 {object} ErrorResponse "Insufficient funds"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions [post]
func (ps *PaymentService) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TransactionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
		return
	}

	record, err := ps.admission.Submit(r.Context(), userID, req.Amount, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUserNotFound):
			log.Printf("[PAYMENT] Submission for unknown user %d", userID)
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			log.Printf("[PAYMENT] Submission declined for user %d: insufficient funds", userID)
			SendErrorResponse(w, "Insufficient funds", http.StatusConflict, nil)
		case errors.Is(err, ledger.ErrTransactionExists):
			log.Printf("[PAYMENT] Submission failed for user %d: identifier collisions exhausted", userID)
			SendErrorResponse(w, "Transaction already exists", http.StatusConflict, nil)
		default:
			log.Printf("[PAYMENT] Submission failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to process transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	ps.invalidateCachedBalance(r, userID)
	go ps.notifyTransaction(record)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID
// @Description Retrieve a transaction by its identifier
// @Tags payments
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse "Transaction not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions/{txId} [get]
func (ps *PaymentService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	record, err := ps.ledger.Get(r.Context(), txID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PAYMENT] Failed to fetch transaction %s: %v", txID, err)
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// ListTransactions retrieves the caller's recent transactions
// @Summary List recent transactions
// @Description Get the authenticated user's most recent transactions, newest first
// @Tags payments
// @Produce json
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions [get]
func (ps *PaymentService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			SendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest, nil)
			return
		}
		req.Limit = l
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := ps.ledger.ListByUser(r.Context(), userID, req.Limit)
	if err != nil {
		log.Printf("[PAYMENT] Failed to list transactions for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (ps *PaymentService) cachedBalance(r *http.Request, userID int) (string, bool) {
	if ps.redis == nil {
		return "", false
	}
	cached, err := ps.redis.Get(r.Context(), balanceCacheKey(userID)).Result()
	if err != nil {
		return "", false
	}
	return cached, true
}

func (ps *PaymentService) storeCachedBalance(r *http.Request, userID int, amount string) {
	if ps.redis == nil {
		return
	}
	if err := ps.redis.Set(r.Context(), balanceCacheKey(userID), amount, balanceCacheTTL).Err(); err != nil {
		log.Printf("[PAYMENT] Failed to cache balance for user %d: %v", userID, err)
	}
}

func (ps *PaymentService) invalidateCachedBalance(r *http.Request, userID int) {
	if ps.redis == nil {
		return
	}
	if err := ps.redis.Del(r.Context(), balanceCacheKey(userID)).Err(); err != nil {
		log.Printf("[PAYMENT] Failed to invalidate cached balance for user %d: %v", userID, err)
	}
}

func balanceCacheKey(userID int) string {
	return fmt.Sprintf("balance:%d", userID)
}

func (ps *PaymentService) notifyTransaction(record *models.Transaction) {
	// Send notification (SMS, push, etc.)
	log.Printf("Notification: Transaction %s recorded for user %d", record.TransactionID, record.UserID)
}
