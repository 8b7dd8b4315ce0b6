package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactoriesStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"validation", NewValidation("bad"), CodeValidation, http.StatusUnprocessableEntity},
		{"bad request", NewBadRequest("bad json"), CodeBadRequest, http.StatusBadRequest},
		{"invalid quantity", NewInvalidQuantity("must be positive", 0), CodeInvalidQuantity, http.StatusBadRequest},
		{"insufficient", NewInsufficientStock("p1", "Paracetamol", 20, 15), CodeInsufficientStock, http.StatusConflict},
		{"negative", NewNegativeResultingStock("p1", 3, -5), CodeNegativeResultingStock, http.StatusConflict},
		{"tx failure", NewTransactionFailure(errors.New("boom")), CodeTransactionFailure, http.StatusInternalServerError},
		{"not found", NewNotFound("product", "p1"), CodeNotFound, http.StatusNotFound},
		{"duplicate", NewDuplicate("invoice", "number", "FAC-2026-00001"), CodeDuplicate, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
		})
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("p1", "Paracetamol 500mg", 20, 15)

	assert.Equal(t, "p1", err.Details["product_id"])
	assert.Equal(t, "Paracetamol 500mg", err.Details["product_name"])
	assert.Equal(t, int64(20), err.Details["requested"])
	assert.Equal(t, int64(15), err.Details["available"])
	assert.Contains(t, err.Message, "Paracetamol 500mg")
}

func TestWrappedErrorsAreDetected(t *testing.T) {
	base := NewDuplicate("invoice", "number", "FAC-2026-00007")
	wrapped := fmt.Errorf("insert invoice: %w", base)

	assert.True(t, IsDuplicateField(wrapped, "number"))
	assert.False(t, IsDuplicateField(wrapped, "code"))
	assert.True(t, IsClientError(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestTransactionFailureKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransactionFailure(cause)

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsClientError(err))
	assert.NotContains(t, err.Message, "connection reset")
}
