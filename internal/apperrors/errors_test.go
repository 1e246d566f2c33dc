package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorFormatsWithDetails(t *testing.T) {
	err := NewValidationError("missing field").WithDetails("field=activity")
	assert.Equal(t, "validation: missing field (field=activity)", err.Error())
}

func TestAppError_ErrorFormatsWithoutDetails(t *testing.T) {
	err := NewNotFoundError("request not found")
	assert.Equal(t, "not_found: request not found", err.Error())
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, TransientExternal, "entitlement source unavailable")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, TransientExternal, GetType(err))
}

func TestIsType(t *testing.T) {
	err := NewStateError("request already approved")
	assert.True(t, IsType(err, StateError))
	assert.False(t, IsType(err, Validation))
}

func TestGetType_NonAppErrorIsFatal(t *testing.T) {
	assert.Equal(t, Fatal, GetType(errors.New("unexpected")))
}

func TestRetryable_OnlyTransientExternal(t *testing.T) {
	assert.True(t, Retryable(NewTransientExternalError("timeout")))
	assert.False(t, Retryable(NewPermanentExternalError("rejected")))
	assert.False(t, Retryable(NewValidationError("bad input")))
}
