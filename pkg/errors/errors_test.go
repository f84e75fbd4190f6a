package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrNotFound, http.StatusNotFound},
		{ErrTimeout, http.StatusServiceUnavailable},
		{ErrBackend, http.StatusInternalServerError},
		{errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatusCode(tt.err); got != tt.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHTTPStatusCodeWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("%w: document d1", ErrNotFound)
	if got := HTTPStatusCode(err); got != http.StatusNotFound {
		t.Errorf("wrapped sentinel mapped to %d, want 404", got)
	}

	deep := fmt.Errorf("outer: %w", fmt.Errorf("%w: inner", ErrBackend))
	if !errors.Is(deep, ErrBackend) {
		t.Error("double-wrapped sentinel lost its identity")
	}
}

func TestAppErrorOverridesStatus(t *testing.T) {
	appErr := New(ErrBackend, http.StatusBadGateway, "cluster unreachable")
	if got := HTTPStatusCode(appErr); got != http.StatusBadGateway {
		t.Errorf("AppError status = %d, want 502", got)
	}
	if !errors.Is(appErr, ErrBackend) {
		t.Error("AppError does not unwrap to its sentinel")
	}

	wrapped := fmt.Errorf("during search: %w", appErr)
	if got := HTTPStatusCode(wrapped); got != http.StatusBadGateway {
		t.Errorf("wrapped AppError status = %d, want 502", got)
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	appErr := Newf(ErrInvalidInput, http.StatusBadRequest, "topK %d out of range", 500)
	want := "invalid input: topK 500 out of range"
	if appErr.Error() != want {
		t.Errorf("Error() = %q, want %q", appErr.Error(), want)
	}
}
