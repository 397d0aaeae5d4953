package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := NotFoundf("bill %s", "b-1")
	wrapped := fmt.Errorf("failed to update bill: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, "bill b-1", Message(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", Validationf("amount must be positive"), false},
		{"permission", New(KindPermission, "denied"), false},
		{"unauthorized", New(KindUnauthorized, "token expired"), false},
		{"conflict", New(KindConflict, "manual"), false},
		{"transient", New(KindTransient, "unavailable"), true},
		{"plain error", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindTransient, cause, "failed to push snapshot")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
