package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON envelope every failed request body carries.
type ErrorResponse struct {
	Error   string            `json:"error"`             // What went wrong
	Details map[string]string `json:"details,omitempty"` // Per-field validation failures
}

// ValidationHelper shares one validator instance across a service's handlers.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{validator: validator.New()}
}

// ValidateStruct checks s against its validate tags.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes the error envelope. Field-level validation
// failures, when present, are broken out into Details; any other error kind
// leaves Details empty.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			errorResp.Details[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
