package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "already done")

	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
	assert.False(t, HasCode(nil, CodeConflict))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeExpired, "session expired")
	outer := fmt.Errorf("submit evidence: %w", inner)

	assert.True(t, HasCode(outer, CodeExpired))
	assert.Equal(t, CodeExpired, CodeOf(outer))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "storage unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeBadRequest:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeExpired:      http.StatusGone,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:     http.StatusInternalServerError,
		Code("unknown"):  http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
