package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := Conflictf("vehicle %d is booked", 3)
	wrapped := fmt.Errorf("request rental: %w", err)

	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(cause, "load rental %d", 1)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindTransient, KindOf(errors.New("boom")))
	assert.Equal(t, KindPaymentFailed, KindOf(PaymentFailed(nil, "declined")))
}
