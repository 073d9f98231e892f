package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"not connected", NewNotConnectedError("no client"), IsNotConnected, true},
		{"rate limited", NewRateLimitedError("429", nil), IsRateLimited, true},
		{"credential expired", NewCredentialExpiredError("403"), IsCredentialExpired, true},
		{"malformed", NewMalformedError("bad lockfile"), IsMalformed, true},
		{"wrong predicate", NewMalformedError("bad lockfile"), IsRateLimited, false},
		{"plain error", stderrors.New("boom"), IsMalformed, false},
		{"nil", nil, IsCredentialExpired, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("dispatch failed: %w", NewCredentialExpiredError("403"))
	if !IsCredentialExpired(wrapped) {
		t.Error("predicate should see through fmt.Errorf wrapping")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := NewInternalErrorWithCause("request failed", cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if msg := err.Error(); msg != "[INTERNAL_ERROR] request failed: socket closed" {
		t.Errorf("Error() = %q", msg)
	}
}
