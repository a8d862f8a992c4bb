package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type limitedRequest struct {
	Name  string `validate:"required,min=2"`
	Limit int    `validate:"omitempty,min=1,max=100"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&limitedRequest{Name: "John Doe", Limit: 10})
		assert.NoError(t, err)
	})

	t.Run("collects every failing field", func(t *testing.T) {
		err := vh.ValidateStruct(&limitedRequest{Name: "J", Limit: 500})
		assert.Error(t, err)

		var fieldErrs validator.ValidationErrors
		assert.ErrorAs(t, err, &fieldErrs)
		assert.Len(t, fieldErrs, 2)
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error without details", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("validation failures broken out per field", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&limitedRequest{Name: "J", Limit: 500})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Name")
		assert.Contains(t, response.Details, "Limit")
	})

	t.Run("non-validation error yields no details", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Storage fault", http.StatusInternalServerError, errors.New("connection reset"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Storage fault", response.Error)
		assert.Nil(t, response.Details)
	})
}
